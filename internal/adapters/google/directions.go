package google

import (
	"context"
	"fmt"
	"net/url"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
)

type directionsResponse struct {
	statusResponse
	Routes []struct {
		Summary string `json:"summary"`
		Legs    []struct {
			StartAddress  string `json:"start_address"`
			EndAddress    string `json:"end_address"`
			StartLocation latLng `json:"start_location"`
			EndLocation   latLng `json:"end_location"`
			Steps         []struct {
				Distance struct {
					Value float64 `json:"value"`
				} `json:"distance"`
				Polyline struct {
					Points string `json:"points"`
				} `json:"polyline"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l latLng) point() domain.GeoPoint {
	return domain.GeoPoint{Lat: l.Lat, Lon: l.Lng}
}

// Directions implements ports.DirectionsProvider. Each step's encoded
// polyline is decoded into its vertices.
func (c *Client) Directions(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.TravelModeWalking
	}
	params := url.Values{}
	params.Set("origin", req.Origin)
	params.Set("destination", req.Destination)
	params.Set("mode", string(mode))

	var resp directionsResponse
	if err := c.get(ctx, "directions", "/maps/api/directions/json", params, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus(resp.statusResponse, ErrNoRoute); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, ErrNoRoute
	}

	out := &domain.Directions{Routes: make([]domain.DirectionsRoute, 0, len(resp.Routes))}
	for _, r := range resp.Routes {
		route := domain.DirectionsRoute{Summary: r.Summary}
		for _, l := range r.Legs {
			leg := domain.Leg{
				StartLocation: l.StartLocation.point(),
				EndLocation:   l.EndLocation.point(),
				StartAddress:  l.StartAddress,
				EndAddress:    l.EndAddress,
				Steps:         make([]domain.Step, 0, len(l.Steps)),
			}
			for i, s := range l.Steps {
				points, err := geospatial.DecodePolyline(s.Polyline.Points)
				if err != nil {
					return nil, fmt.Errorf("step %d: %w", i, err)
				}
				leg.Steps = append(leg.Steps, domain.Step{
					DistanceMeters: s.Distance.Value,
					Points:         points,
				})
			}
			route.Legs = append(route.Legs, leg)
		}
		out.Routes = append(out.Routes, route)
	}
	return out, nil
}
