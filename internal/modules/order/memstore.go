// README: In-memory order store with the same compare-and-swap semantics as SQL.
package order

import (
	"context"
	"sync"
	"time"

	"laoyou/internal/types"
)

// MemStore keeps orders in a mutex-guarded map. The status check and the
// write happen under one lock acquisition, which gives UpdateStatus the same
// conditional-write guarantee as the SQL `WHERE status = $expected`.
type MemStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
	events []Event
	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[types.ID]*Order)}
}

func (s *MemStore) Insert(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, upd StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[upd.OrderID]
	if !ok {
		return false, nil
	}
	if o.Status != upd.From {
		return false, nil
	}

	o.Status = upd.To
	if d := upd.Driver; d != nil {
		o.DriverID = d.ID
		o.DriverName = d.Name
		o.LicensePlate = d.LicensePlate
	}
	if tr := upd.Trip; tr != nil {
		o.DistanceKm = tr.DistanceKm
		o.DurationMin = tr.DurationMin
		o.Fee.BaseFee = tr.BaseFee
		o.Fee.DistanceFee = tr.DistanceFee
		o.Fee.TimeFee = tr.TimeFee
		o.Fee.ExtraFee = tr.ExtraFee
		o.Fee.DiscountFee = tr.DiscountFee
		o.Fee.TotalFee = tr.TotalFee
		o.PayStatus = tr.PayStatus
	}
	if c := upd.Cancel; c != nil {
		o.Cancelor = c.Actor
		o.CancelReason = c.Reason
	}

	at := upd.At
	switch upd.To {
	case StatusDispatched:
		if o.DispatchedAt == nil {
			o.DispatchedAt = &at
		}
	case StatusDriverAccepted:
		if o.AcceptedAt == nil {
			o.AcceptedAt = &at
		}
	case StatusPickedUp:
		if o.PickedUpAt == nil {
			o.PickedUpAt = &at
		}
	case StatusCompleted:
		if o.CompletedAt == nil {
			o.CompletedAt = &at
		}
	case StatusCanceled:
		if o.CanceledAt == nil {
			o.CanceledAt = &at
		}
	}
	return true, nil
}

func (s *MemStore) ListExpirable(_ context.Context, now time.Time) ([]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []types.ID
	for id, o := range s.orders {
		if (o.Status == StatusPendingDispatch || o.Status == StatusDispatched) && o.DeadlineAt.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *e
	cp.ID = s.nextID
	s.events = append(s.events, cp)
	return nil
}

// Events returns a copy of the audit trail; test helper.
func (s *MemStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
