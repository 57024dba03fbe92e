// README: Order store contract and its PostgreSQL implementation.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laoyou/internal/types"
)

// DriverInfo is the driver identity recorded at acceptance.
type DriverInfo struct {
	ID           types.ID
	Name         string
	LicensePlate string
}

// TripResult is the settlement payload recorded at completion.
type TripResult struct {
	DistanceKm  float64
	DurationMin float64
	BaseFee     float64
	DistanceFee float64
	TimeFee     float64
	ExtraFee    float64
	DiscountFee float64
	TotalFee    float64
	PayStatus   string
}

// CancelInfo records who canceled and why.
type CancelInfo struct {
	Actor  string
	Reason string
}

// StatusUpdate is one conditional transition. The write applies only when
// the stored status still equals From; the timestamp column matching To is
// stamped, optional payloads fill their fields, everything else is untouched.
type StatusUpdate struct {
	OrderID types.ID
	From    Status
	To      Status
	At      time.Time

	Driver *DriverInfo
	Trip   *TripResult
	Cancel *CancelInfo
}

// Store is the persistence boundary for orders. UpdateStatus is the
// compare-and-swap primitive every lifecycle transition rides on: it returns
// (false, nil) when the expected status no longer matches, and the caller
// translates that into ErrConflict.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error)
	// ListExpirable returns ids of orders still waiting for a driver whose
	// deadline has passed.
	ListExpirable(ctx context.Context, now time.Time) ([]types.ID, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, user_id,
			start_lat, start_lng, start_address, start_province, start_city, start_district, start_detail,
			end_lat, end_lng, end_address, end_province, end_city, end_district, end_detail,
			start_time, need_elderly_service, note, status,
			driver_id, driver_name, license_plate,
			distance_km, duration_min,
			base_fee, distance_fee, time_fee, extra_fee, discount_fee, total_fee,
			pay_status, cancelor, cancel_reason,
			created_at, deadline_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20,
			$21, $22, $23,
			$24, $25,
			$26, $27, $28, $29, $30, $31,
			$32, $33, $34,
			$35, $36
		)`,
		string(o.ID), string(o.UserID),
		o.Start.Lat, o.Start.Lng, o.Start.Address, o.Start.Province, o.Start.City, o.Start.District, o.Start.Detail,
		o.End.Lat, o.End.Lng, o.End.Address, o.End.Province, o.End.City, o.End.District, o.End.Detail,
		o.StartTime, o.NeedElderlyService, o.Note, string(o.Status),
		string(o.DriverID), o.DriverName, o.LicensePlate,
		o.DistanceKm, o.DurationMin,
		o.Fee.BaseFee, o.Fee.DistanceFee, o.Fee.TimeFee, o.Fee.ExtraFee, o.Fee.DiscountFee, o.Fee.TotalFee,
		o.PayStatus, o.Cancelor, o.CancelReason,
		o.CreatedAt, o.DeadlineAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id,
		       start_lat, start_lng, start_address, start_province, start_city, start_district, start_detail,
		       end_lat, end_lng, end_address, end_province, end_city, end_district, end_detail,
		       start_time, need_elderly_service, note, status,
		       driver_id, driver_name, license_plate,
		       distance_km, duration_min,
		       base_fee, distance_fee, time_fee, extra_fee, discount_fee, total_fee,
		       pay_status, cancelor, cancel_reason,
		       created_at, deadline_at,
		       dispatched_at, accepted_at, picked_up_at, completed_at, canceled_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var dispatchedAt, acceptedAt, pickedUpAt, completedAt, canceledAt *time.Time
	err := row.Scan(
		&o.ID, &o.UserID,
		&o.Start.Lat, &o.Start.Lng, &o.Start.Address, &o.Start.Province, &o.Start.City, &o.Start.District, &o.Start.Detail,
		&o.End.Lat, &o.End.Lng, &o.End.Address, &o.End.Province, &o.End.City, &o.End.District, &o.End.Detail,
		&o.StartTime, &o.NeedElderlyService, &o.Note, &o.Status,
		&o.DriverID, &o.DriverName, &o.LicensePlate,
		&o.DistanceKm, &o.DurationMin,
		&o.Fee.BaseFee, &o.Fee.DistanceFee, &o.Fee.TimeFee, &o.Fee.ExtraFee, &o.Fee.DiscountFee, &o.Fee.TotalFee,
		&o.PayStatus, &o.Cancelor, &o.CancelReason,
		&o.CreatedAt, &o.DeadlineAt,
		&dispatchedAt, &acceptedAt, &pickedUpAt, &completedAt, &canceledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.DispatchedAt = dispatchedAt
	o.AcceptedAt = acceptedAt
	o.PickedUpAt = pickedUpAt
	o.CompletedAt = completedAt
	o.CanceledAt = canceledAt
	return &o, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error) {
	var (
		driverID, driverName, licensePlate *string
		distanceKm, durationMin            *float64
		baseFee, distanceFee, timeFee      *float64
		extraFee, discountFee, totalFee    *float64
		payStatus, cancelor, cancelReason  *string
	)
	if d := upd.Driver; d != nil {
		id := string(d.ID)
		driverID, driverName, licensePlate = &id, &d.Name, &d.LicensePlate
	}
	if tr := upd.Trip; tr != nil {
		distanceKm, durationMin = &tr.DistanceKm, &tr.DurationMin
		baseFee, distanceFee, timeFee = &tr.BaseFee, &tr.DistanceFee, &tr.TimeFee
		extraFee, discountFee, totalFee = &tr.ExtraFee, &tr.DiscountFee, &tr.TotalFee
		payStatus = &tr.PayStatus
	}
	if c := upd.Cancel; c != nil {
		cancelor, cancelReason = &c.Actor, &c.Reason
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    driver_id     = COALESCE($4, driver_id),
		    driver_name   = COALESCE($5, driver_name),
		    license_plate = COALESCE($6, license_plate),
		    distance_km   = COALESCE($7, distance_km),
		    duration_min  = COALESCE($8, duration_min),
		    base_fee      = COALESCE($9, base_fee),
		    distance_fee  = COALESCE($10, distance_fee),
		    time_fee      = COALESCE($11, time_fee),
		    extra_fee     = COALESCE($12, extra_fee),
		    discount_fee  = COALESCE($13, discount_fee),
		    total_fee     = COALESCE($14, total_fee),
		    pay_status    = COALESCE($15, pay_status),
		    cancelor      = COALESCE($16, cancelor),
		    cancel_reason = COALESCE($17, cancel_reason),
		    dispatched_at = CASE WHEN $2 = 'dispatched'      THEN $3 ELSE dispatched_at END,
		    accepted_at   = CASE WHEN $2 = 'driver_accepted' THEN $3 ELSE accepted_at END,
		    picked_up_at  = CASE WHEN $2 = 'picked_up'       THEN $3 ELSE picked_up_at END,
		    completed_at  = CASE WHEN $2 = 'completed'       THEN $3 ELSE completed_at END,
		    canceled_at   = CASE WHEN $2 = 'canceled'        THEN $3 ELSE canceled_at END
		WHERE id = $1 AND status = $18`,
		string(upd.OrderID), string(upd.To), upd.At,
		driverID, driverName, licensePlate,
		distanceKm, durationMin,
		baseFee, distanceFee, timeFee, extraFee, discountFee, totalFee,
		payStatus, cancelor, cancelReason,
		string(upd.From),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListExpirable(ctx context.Context, now time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM orders
		WHERE status IN ('pending_dispatch', 'dispatched')
		  AND deadline_at < $1`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, string(e.ActorID), e.CreatedAt,
	)
	return err
}
