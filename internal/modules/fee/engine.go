// README: Fee engine computes estimate and settlement fares from configured rates.
package fee

import (
	"context"
	"errors"

	"laoyou/internal/types"
)

var ErrBadRequest = errors.New("invalid fee input")

// Rates holds the tariff used by both estimate and settlement. Values come
// from configuration; the formula never embeds amounts directly.
type Rates struct {
	BaseFee          float64
	PerKm            float64
	PerMin           float64
	ElderlySurcharge float64
	EstimateMinutes  float64
}

// Breakdown is the itemized fare attached to an order. Components keep full
// precision; only Total is rounded (two decimals).
type Breakdown struct {
	BaseFee     float64 `json:"base_fee"`
	DistanceFee float64 `json:"distance_fee"`
	TimeFee     float64 `json:"time_fee"`
	ExtraFee    float64 `json:"extra_fee"`
	DiscountFee float64 `json:"discount_fee"`
	TotalFee    float64 `json:"total_fee"`
}

// DiscountPolicy decides the settlement discount for a ride. The returned
// amount is clamped by the engine to [0, subtotal].
type DiscountPolicy interface {
	DiscountFor(ctx context.Context, userID types.ID, subtotal float64, needElderlyService bool) (float64, error)
}

// DiscountFunc adapts a plain function to DiscountPolicy.
type DiscountFunc func(ctx context.Context, userID types.ID, subtotal float64, needElderlyService bool) (float64, error)

func (f DiscountFunc) DiscountFor(ctx context.Context, userID types.ID, subtotal float64, needElderlyService bool) (float64, error) {
	return f(ctx, userID, subtotal, needElderlyService)
}

// NoDiscount never grants a discount.
func NoDiscount() DiscountPolicy {
	return DiscountFunc(func(context.Context, types.ID, float64, bool) (float64, error) {
		return 0, nil
	})
}

// ElderlyDiscount grants a fixed reduction on rides booked with elderly
// assistance; everyone else pays full fare.
func ElderlyDiscount(amount float64) DiscountPolicy {
	return DiscountFunc(func(_ context.Context, _ types.ID, _ float64, needElderlyService bool) (float64, error) {
		if !needElderlyService {
			return 0, nil
		}
		return amount, nil
	})
}

// FlatDiscount grants a fixed reduction when eligible reports true for the
// user, e.g. an account-service elderly flag lookup.
func FlatDiscount(amount float64, eligible func(ctx context.Context, userID types.ID) (bool, error)) DiscountPolicy {
	return DiscountFunc(func(ctx context.Context, userID types.ID, _ float64, _ bool) (float64, error) {
		ok, err := eligible(ctx, userID)
		if err != nil || !ok {
			return 0, err
		}
		return amount, nil
	})
}

// Engine computes fares. It is stateless apart from its rates and policy.
type Engine struct {
	rates    Rates
	discount DiscountPolicy
}

func NewEngine(rates Rates, discount DiscountPolicy) *Engine {
	if discount == nil {
		discount = NoDiscount()
	}
	return &Engine{rates: rates, discount: discount}
}

// Rates returns the configured tariff.
func (e *Engine) Rates() Rates {
	return e.rates
}

// Estimate prices a trip before it happens. Duration is the configured fixed
// estimate because route and traffic data are unavailable pre-trip; callers
// with a better duration guess use EstimateWithDuration.
func (e *Engine) Estimate(distanceKm float64, needElderlyService bool) Breakdown {
	return e.EstimateWithDuration(distanceKm, e.rates.EstimateMinutes, needElderlyService)
}

// EstimateWithDuration prices a trip with an explicit duration guess.
// No discount applies at estimate time.
func (e *Engine) EstimateWithDuration(distanceKm, durationMin float64, needElderlyService bool) Breakdown {
	return e.compute(distanceKm, durationMin, needElderlyService, 0)
}

// Settle prices a completed trip from the actual reported distance and
// duration, applying the discount policy.
func (e *Engine) Settle(ctx context.Context, userID types.ID, distanceKm, durationMin float64, needElderlyService bool) (Breakdown, error) {
	if distanceKm < 0 || durationMin < 0 {
		return Breakdown{}, ErrBadRequest
	}
	subtotal := e.rates.BaseFee + distanceKm*e.rates.PerKm + durationMin*e.rates.PerMin
	if needElderlyService {
		subtotal += e.rates.ElderlySurcharge
	}
	discount, err := e.discount.DiscountFor(ctx, userID, subtotal, needElderlyService)
	if err != nil {
		return Breakdown{}, err
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return e.compute(distanceKm, durationMin, needElderlyService, discount), nil
}

func (e *Engine) compute(distanceKm, durationMin float64, needElderlyService bool, discount float64) Breakdown {
	b := Breakdown{
		BaseFee:     e.rates.BaseFee,
		DistanceFee: distanceKm * e.rates.PerKm,
		TimeFee:     durationMin * e.rates.PerMin,
		DiscountFee: discount,
	}
	if needElderlyService {
		b.ExtraFee = e.rates.ElderlySurcharge
	}
	b.TotalFee = types.Round2(b.BaseFee + b.DistanceFee + b.TimeFee + b.ExtraFee - b.DiscountFee)
	return b
}
