// README: Order lifecycle service: every transition is an optimistic conditional write.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"laoyou/internal/logger"
	"laoyou/internal/modules/address"
	"laoyou/internal/modules/dispatch"
	"laoyou/internal/modules/fee"
	"laoyou/internal/modules/payment"
	"laoyou/internal/types"
)

var (
	ErrBadRequest    = errors.New("bad order request")
	ErrNotFound      = errors.New("order not found")
	ErrAlreadyExists = errors.New("order already exists")
	ErrConflict      = errors.New("order state conflict")
	ErrInvalidState  = errors.New("invalid state transition")
	ErrForbidden     = errors.New("not the assigned driver")
)

// dispatchCallTimeout bounds the external driver-matching call so a hung
// dispatch cannot leave an order stuck in dispatched.
const dispatchCallTimeout = 10 * time.Second

const defaultDispatchWindow = 600 * time.Second

// LocationResolver normalizes order endpoint references; implemented by
// address.Service.
type LocationResolver interface {
	Resolve(ctx context.Context, userID types.ID, ref address.Ref) (types.Location, error)
}

// RouteEstimator predicts trip duration in minutes; optional refinement for
// pre-trip estimates (Google Maps adapter in internal/maps).
type RouteEstimator interface {
	TravelMinutes(ctx context.Context, from, to types.Location) (float64, error)
}

// Deps wires the lifecycle. Clock and NewID default to time.Now and uuid,
// injectable for deterministic tests.
type Deps struct {
	Store    Store
	Fees     *fee.Engine
	Resolver LocationResolver
	Finder   dispatch.DriverFinder
	Payments payment.Notifier
	Routes   RouteEstimator // optional
	Log      logger.Logger  // optional

	DispatchWindow time.Duration
	Clock          func() time.Time
	NewID          func() types.ID
}

type Service struct {
	store    Store
	fees     *fee.Engine
	resolver LocationResolver
	finder   dispatch.DriverFinder
	payments payment.Notifier
	routes   RouteEstimator
	log      logger.Logger

	dispatchWindow time.Duration
	clock          func() time.Time
	newID          func() types.ID
}

func NewService(d Deps) *Service {
	s := &Service{
		store:          d.Store,
		fees:           d.Fees,
		resolver:       d.Resolver,
		finder:         d.Finder,
		payments:       d.Payments,
		routes:         d.Routes,
		log:            d.Log,
		dispatchWindow: d.DispatchWindow,
		clock:          d.Clock,
		newID:          d.NewID,
	}
	if s.payments == nil {
		s.payments = payment.Nop()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.dispatchWindow <= 0 {
		s.dispatchWindow = defaultDispatchWindow
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = func() types.ID { return types.ID(uuid.NewString()) }
	}
	return s
}

type CreateCommand struct {
	UserID             types.ID
	StartRef           address.Ref
	EndRef             address.Ref
	StartTime          time.Time
	NeedElderlyService bool
	Note               string
}

type AcceptCommand struct {
	OrderID      types.ID
	DriverID     types.ID
	DriverName   string
	LicensePlate string
}

type PickUpCommand struct {
	OrderID  types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	OrderID     types.ID
	DriverID    types.ID
	DistanceKm  float64
	DurationMin float64
}

type CancelCommand struct {
	OrderID types.ID
	Actor   string // user / driver / system
	ActorID types.ID
	Reason  string
}

// Create resolves both endpoints, prices the trip, and persists a new order
// in pending_dispatch with its dispatch deadline.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.UserID == "" {
		return nil, ErrBadRequest
	}
	start, err := s.resolver.Resolve(ctx, cmd.UserID, cmd.StartRef)
	if err != nil {
		return nil, err
	}
	end, err := s.resolver.Resolve(ctx, cmd.UserID, cmd.EndRef)
	if err != nil {
		return nil, err
	}

	distanceKm := start.DistanceKm(end)
	estimate := s.fees.Estimate(distanceKm, cmd.NeedElderlyService)
	if s.routes != nil {
		// Route data is a refinement only; estimation must work without it.
		if mins, err := s.routes.TravelMinutes(ctx, start, end); err == nil && mins > 0 {
			estimate = s.fees.EstimateWithDuration(distanceKm, mins, cmd.NeedElderlyService)
		}
	}

	now := s.clock()
	o := &Order{
		ID:                 s.newID(),
		UserID:             cmd.UserID,
		Start:              start,
		End:                end,
		StartTime:          cmd.StartTime,
		NeedElderlyService: cmd.NeedElderlyService,
		Note:               cmd.Note,
		Status:             StatusPendingDispatch,
		Fee:                estimate,
		CreatedAt:          now,
		DeadlineAt:         now.Add(s.dispatchWindow),
	}
	if err := s.store.Insert(ctx, o); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, o.ID, StatusNone, StatusPendingDispatch, "user", cmd.UserID)
	s.log.WithField("order_id", o.ID).Infof("order created, estimate %.2f", o.Fee.TotalFee)
	return o, nil
}

// Dispatch moves a pending order into dispatched and asks the external
// matching call for a driver. A failed or empty match moves the order to
// failed instead of leaving it stuck.
func (s *Service) Dispatch(ctx context.Context, orderID types.ID) (types.ID, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !CanTransition(o.Status, StatusDispatched) {
		return "", ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		OrderID: o.ID,
		From:    StatusPendingDispatch,
		To:      StatusDispatched,
		At:      s.clock(),
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrConflict
	}
	s.appendEvent(ctx, o.ID, StatusPendingDispatch, StatusDispatched, "system", "")

	callCtx, cancel := context.WithTimeout(ctx, dispatchCallTimeout)
	defer cancel()
	driverID, err := s.finder.FindDriver(callCtx, dispatch.Request{OrderID: o.ID, Pickup: o.Start})
	if err != nil {
		s.markDispatchFailed(ctx, o.ID)
		return "", err
	}
	s.log.WithField("order_id", o.ID).Infof("driver %s matched", driverID)
	return driverID, nil
}

func (s *Service) markDispatchFailed(ctx context.Context, orderID types.ID) {
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		OrderID: orderID,
		From:    StatusDispatched,
		To:      StatusFailed,
		At:      s.clock(),
	})
	if err != nil {
		s.log.WithField("order_id", orderID).Errorf("mark failed: %v", err)
		return
	}
	if ok {
		s.appendEvent(ctx, orderID, StatusDispatched, StatusFailed, "system", "")
	}
}

// Accept records the winning driver. When two drivers race, exactly one
// conditional write succeeds; the loser gets ErrConflict and must report
// "order already taken", never overwrite the claim.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	if cmd.DriverID == "" {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	// A ride another driver already holds is a conflict, not a bad state:
	// drivers uniformly see "order already taken" whether they lose the
	// conditional write or read the winner's commit.
	switch o.Status {
	case StatusDriverAccepted, StatusPickedUp, StatusCompleted:
		return ErrConflict
	}
	if !CanTransition(o.Status, StatusDriverAccepted) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		OrderID: o.ID,
		From:    StatusDispatched,
		To:      StatusDriverAccepted,
		At:      s.clock(),
		Driver: &DriverInfo{
			ID:           cmd.DriverID,
			Name:         cmd.DriverName,
			LicensePlate: cmd.LicensePlate,
		},
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, o.ID, StatusDispatched, StatusDriverAccepted, "driver", cmd.DriverID)
	return nil
}

// PickUp confirms the rider is on board; only the accepted driver may do it.
func (s *Service) PickUp(ctx context.Context, cmd PickUpCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusPickedUp) {
		return ErrInvalidState
	}
	if o.DriverID != cmd.DriverID {
		return ErrForbidden
	}
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		OrderID: o.ID,
		From:    StatusDriverAccepted,
		To:      StatusPickedUp,
		At:      s.clock(),
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, o.ID, StatusDriverAccepted, StatusPickedUp, "driver", cmd.DriverID)
	return nil
}

// Complete settles the trip from actual distance and duration, marks the
// order unpaid, and hands the charge to the payment collaborator without
// waiting for confirmation.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCompleted) {
		return nil, ErrInvalidState
	}
	if o.DriverID != cmd.DriverID {
		return nil, ErrForbidden
	}

	settled, err := s.fees.Settle(ctx, o.UserID, cmd.DistanceKm, cmd.DurationMin, o.NeedElderlyService)
	if err != nil {
		if errors.Is(err, fee.ErrBadRequest) {
			return nil, ErrBadRequest
		}
		return nil, err
	}

	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		OrderID: o.ID,
		From:    StatusPickedUp,
		To:      StatusCompleted,
		At:      s.clock(),
		Trip: &TripResult{
			DistanceKm:  cmd.DistanceKm,
			DurationMin: cmd.DurationMin,
			BaseFee:     settled.BaseFee,
			DistanceFee: settled.DistanceFee,
			TimeFee:     settled.TimeFee,
			ExtraFee:    settled.ExtraFee,
			DiscountFee: settled.DiscountFee,
			TotalFee:    settled.TotalFee,
			PayStatus:   "unpaid",
		},
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, o.ID, StatusPickedUp, StatusCompleted, "driver", cmd.DriverID)

	if err := s.payments.InitiateCharge(ctx, payment.Charge{
		OrderID: o.ID,
		PayerID: o.UserID,
		Amount:  settled.TotalFee,
	}); err != nil {
		// Settlement stands; the payment collaborator re-drives charges.
		s.log.WithField("order_id", o.ID).Errorf("payment hand-off: %v", err)
	}

	return s.store.Get(ctx, o.ID)
}

// Cancel is allowed from any state strictly before a terminal one.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() || !CanTransition(o.Status, StatusCanceled) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		OrderID: o.ID,
		From:    o.Status,
		To:      StatusCanceled,
		At:      s.clock(),
		Cancel: &CancelInfo{
			Actor:  cmd.Actor,
			Reason: cmd.Reason,
		},
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, o.ID, o.Status, StatusCanceled, cmd.Actor, cmd.ActorID)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// SweepExpired moves orders past their dispatch deadline to expired. Losing
// the write to a concurrent Accept is a normal outcome, not an error: the
// sweeper simply skips that order. Returns how many orders it expired.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.store.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		o, err := s.store.Get(ctx, id)
		if err != nil {
			continue
		}
		if o.Status != StatusPendingDispatch && o.Status != StatusDispatched {
			continue
		}
		ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
			OrderID: id,
			From:    o.Status,
			To:      StatusExpired,
			At:      now,
		})
		if err != nil {
			s.log.WithField("order_id", id).Errorf("expire: %v", err)
			continue
		}
		if !ok {
			// Another actor won; too late to expire.
			continue
		}
		s.appendEvent(ctx, id, o.Status, StatusExpired, "system", "")
		expired++
	}
	return expired, nil
}

// RunExpirySweeper runs SweepExpired on a fixed interval until ctx is done.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx, s.clock())
			if err != nil {
				s.log.Errorf("expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				s.log.Infof("expired %d stale orders", n)
			}
		}
	}
}

func (s *Service) appendEvent(ctx context.Context, orderID types.ID, from, to Status, actorType string, actorID types.ID) {
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.clock(),
	})
}
