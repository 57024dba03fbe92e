// README: Payment hand-off contract; the core never waits for confirmation.
package payment

import (
	"context"

	"laoyou/internal/types"
)

// Charge is what the external payment collaborator needs to initiate
// a charge for a completed order.
type Charge struct {
	OrderID types.ID `json:"order_id"`
	PayerID types.ID `json:"payer_id"`
	Amount  float64  `json:"amount"`
}

// Notifier hands a completed order over to the payment subsystem.
type Notifier interface {
	InitiateCharge(ctx context.Context, c Charge) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Charge) error

func (f NotifierFunc) InitiateCharge(ctx context.Context, c Charge) error {
	return f(ctx, c)
}

// Nop discards charges; for tests and environments without a payment queue.
func Nop() Notifier {
	return NotifierFunc(func(context.Context, Charge) error { return nil })
}
