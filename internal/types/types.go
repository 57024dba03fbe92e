// README: Shared value objects: IDs, money rounding, and geographic locations.
package types

import "math"

// ID is an opaque string identifier shared across modules.
type ID string

const earthRadiusKm = 6371.0

// China bounding box used to sanity-check coordinates.
const (
	minLatitude  = 4.0
	maxLatitude  = 53.0
	minLongitude = 73.0
	maxLongitude = 135.0
)

// Location is a resolved geographic point with its human-readable address.
// Locations are copied by value into orders and saved addresses; they are
// never shared or mutated after attachment.
type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address"`
	Province string  `json:"province,omitempty"`
	City     string  `json:"city,omitempty"`
	District string  `json:"district,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

// Valid reports whether the location carries usable coordinates and a
// non-empty display address.
func (l Location) Valid() bool {
	return l.Lat >= minLatitude && l.Lat <= maxLatitude &&
		l.Lng >= minLongitude && l.Lng <= maxLongitude &&
		l.Address != ""
}

// DistanceKm returns the great-circle distance to target in kilometres,
// rounded to one decimal place.
func (l Location) DistanceKm(target Location) float64 {
	dLat := degreesToRadians(target.Lat - l.Lat)
	dLng := degreesToRadians(target.Lng - l.Lng)

	rLat1 := degreesToRadians(l.Lat)
	rLat2 := degreesToRadians(target.Lat)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return Round1(earthRadiusKm * c)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Round1 rounds to one decimal place (distances).
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places (monetary totals).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
