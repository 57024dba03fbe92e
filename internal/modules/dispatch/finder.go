// README: Driver finder contract used by the order lifecycle.
package dispatch

import (
	"context"
	"errors"

	"laoyou/internal/types"
)

// ErrNoDriver means the pool had no candidate for the request; callers treat
// it as a normal dispatch failure, not an infrastructure error.
var ErrNoDriver = errors.New("no driver available")

// Request describes what the finder needs to pick a driver. Matching and ETA
// prediction stay behind this boundary.
type Request struct {
	OrderID types.ID
	Pickup  types.Location
}

// DriverFinder picks a driver for an order or reports ErrNoDriver.
type DriverFinder interface {
	FindDriver(ctx context.Context, req Request) (types.ID, error)
}

// FinderFunc adapts a function to DriverFinder.
type FinderFunc func(ctx context.Context, req Request) (types.ID, error)

func (f FinderFunc) FindDriver(ctx context.Context, req Request) (types.ID, error) {
	return f(ctx, req)
}
