package geospatial

import (
	"github.com/golang/geo/s2"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// EarthRadiusMeters is the sphere radius route lengths are measured on
// (Google Maps spherical geometry uses the same value).
const EarthRadiusMeters = 6378137.0

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.GeoPoint) float64 {
	angle := s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return angle.Radians() * EarthRadiusMeters
}
