package geospatial

import (
	"fmt"

	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// DecodePolyline decodes a Google encoded polyline into points.
func DecodePolyline(encoded string) ([]domain.GeoPoint, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}

	points := make([]domain.GeoPoint, len(coords))
	for i, c := range coords {
		points[i] = domain.GeoPoint{Lat: c[0], Lon: c[1]}
	}
	return points, nil
}

// EncodePolyline encodes points as a Google encoded polyline.
func EncodePolyline(points []domain.GeoPoint) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}
