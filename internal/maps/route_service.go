// README: Google Maps adapter supplying itinerary distance and duration.
package maps

import (
	"context"
	"fmt"
	"math"

	"googlemaps.github.io/maps"
)

// RouteService answers distance/duration lookups for bookings that omit
// them. Route planning itself stays outside this system.
type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate returns driving distance in kilometers and duration in minutes
// between two addresses.
func (s *RouteService) Estimate(ctx context.Context, pickup, dropoff string) (float64, int, error) {
	r := &maps.DistanceMatrixRequest{
		Origins:      []string{pickup},
		Destinations: []string{dropoff},
		Mode:         maps.TravelModeDriving,
	}
	resp, err := s.client.DistanceMatrix(ctx, r)
	if err != nil {
		return 0, 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, 0, fmt.Errorf("no route found")
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, 0, fmt.Errorf("no route found: %s", el.Status)
	}
	km := float64(el.Distance.Meters) / 1000.0
	minutes := int(math.Round(el.Duration.Minutes()))
	return km, minutes, nil
}
