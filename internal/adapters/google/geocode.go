package google

import (
	"context"
	"fmt"
	"net/url"

	"github.com/samirrijal/mapme/internal/core/domain"
)

type geocodeResponse struct {
	statusResponse
	Results []struct {
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// NearestLocality implements ports.Geocoder. The place name is the first
// "locality" component, falling back to "postal_town".
func (c *Client) NearestLocality(ctx context.Context, p domain.GeoPoint) (*domain.Locality, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", p.Lat, p.Lon))

	var resp geocodeResponse
	if err := c.get(ctx, "geocode", "/maps/api/geocode/json", params, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus(resp.statusResponse, ErrNoResults); err != nil {
		return nil, err
	}

	var locality, postalTown, country string
	for _, r := range resp.Results {
		for _, comp := range r.AddressComponents {
			for _, t := range comp.Types {
				switch {
				case t == "locality" && locality == "":
					locality = comp.LongName
				case t == "postal_town" && postalTown == "":
					postalTown = comp.LongName
				case t == "country" && country == "":
					country = comp.LongName
				}
			}
		}
	}

	if locality == "" {
		locality = postalTown
	}
	if locality == "" && country == "" {
		return nil, ErrNoResults
	}
	return &domain.Locality{Name: locality, Country: country}, nil
}
