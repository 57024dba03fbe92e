// README: Order aggregate, status definitions, and the transition table.
package order

import (
	"time"

	"laoyou/internal/modules/fee"
	"laoyou/internal/types"
)

type Status string

const (
	StatusNone            Status = "none"
	StatusPendingDispatch Status = "pending_dispatch"
	StatusDispatched      Status = "dispatched"
	StatusDriverAccepted  Status = "driver_accepted"
	StatusPickedUp        Status = "picked_up"
	StatusCompleted       Status = "completed"
	StatusCanceled        Status = "canceled"
	StatusExpired         Status = "expired"
	StatusFailed          Status = "failed"
)

// Order is a single requested trip and its full status and fee history.
// Timestamps stamp once on their transition and are never rewritten.
type Order struct {
	ID     types.ID
	UserID types.ID

	Start     types.Location
	End       types.Location
	StartTime time.Time

	NeedElderlyService bool
	Note               string

	Status Status

	// Driver identity, populated at acceptance.
	DriverID     types.ID
	DriverName   string
	LicensePlate string

	// Trip results, populated at completion.
	DistanceKm  float64
	DurationMin float64

	Fee       fee.Breakdown
	PayStatus string // "", "unpaid", "paid"

	Cancelor     string // user / driver / system
	CancelReason string

	CreatedAt    time.Time
	DeadlineAt   time.Time // dispatch window cutoff, enforced by the sweeper
	DispatchedAt *time.Time
	AcceptedAt   *time.Time
	PickedUpAt   *time.Time
	CompletedAt  *time.Time
	CanceledAt   *time.Time
}

// Event is one audit row per state transition. Appends are best effort.
type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the order state flow as code. Terminal
// states (completed, canceled, expired, failed) have no outgoing edges.
var AllowedTransitions = map[Status][]Status{
	StatusPendingDispatch: {StatusDispatched, StatusFailed, StatusCanceled, StatusExpired},
	StatusDispatched:      {StatusDriverAccepted, StatusFailed, StatusCanceled, StatusExpired},
	StatusDriverAccepted:  {StatusPickedUp, StatusCanceled},
	StatusPickedUp:        {StatusCompleted, StatusCanceled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusExpired, StatusFailed:
		return true
	}
	return false
}
