// README: Google Maps adapter for pre-trip duration estimates.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"laoyou/internal/types"
)

// RouteService handles interactions with the Google Maps Directions API. It
// refines pre-trip duration guesses; pricing never depends on it being up.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// TravelMinutes returns the driving duration in minutes between two points.
func (s *RouteService) TravelMinutes(ctx context.Context, from, to types.Location) (float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lng),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lng),
		Mode:        maps.TravelModeDriving,
		Language:    "zh-CN",
		Region:      "CN",
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}
	return routes[0].Legs[0].Duration.Minutes(), nil
}
