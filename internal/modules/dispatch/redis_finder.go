// README: Redis GEO-backed driver candidate pool and finder.
package dispatch

import (
	"context"

	"github.com/redis/go-redis/v9"

	"laoyou/internal/types"
)

const driverGeoKey = "dispatch:drivers"

// RedisFinder keeps available drivers in a Redis GEO set and hands out the
// nearest candidate within the configured radius. The chosen driver is
// removed from the pool so two orders do not get the same candidate.
type RedisFinder struct {
	redis    *redis.Client
	radiusKm float64
}

func NewRedisFinder(client *redis.Client, radiusKm float64) *RedisFinder {
	return &RedisFinder{redis: client, radiusKm: radiusKm}
}

// SetAvailable registers or refreshes a driver in the candidate pool.
func (f *RedisFinder) SetAvailable(ctx context.Context, driverID types.ID, pos types.Location) error {
	return f.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// SetUnavailable removes a driver from the candidate pool.
func (f *RedisFinder) SetUnavailable(ctx context.Context, driverID types.ID) error {
	return f.redis.ZRem(ctx, driverGeoKey, string(driverID)).Err()
}

func (f *RedisFinder) FindDriver(ctx context.Context, req Request) (types.ID, error) {
	results, err := f.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  req.Pickup.Lng,
		Latitude:   req.Pickup.Lat,
		Radius:     f.radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      1,
	}).Result()
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNoDriver
	}

	driverID := types.ID(results[0])
	// Claim the candidate; losing a removal race just means the driver was
	// taken by another order, so report no driver rather than double-book.
	removed, err := f.redis.ZRem(ctx, driverGeoKey, results[0]).Result()
	if err != nil {
		return "", err
	}
	if removed == 0 {
		return "", ErrNoDriver
	}
	return driverID, nil
}
