package geospatial

import (
	"errors"
	"math"
	"sort"

	"github.com/samirrijal/mapme/internal/core/domain"
)

var (
	// ErrOutOfRange is returned when a distance lies beyond the end of the path.
	ErrOutOfRange = errors.New("distance beyond end of route")
	// ErrInvalidDistance is returned for negative or NaN distances.
	ErrInvalidDistance = errors.New("distance must be a non-negative number")
	// ErrDegeneratePath is returned when the path has too few vertices to interpolate on.
	ErrDegeneratePath = errors.New("route has fewer than two points")
)

// RoutePath is an immutable polyline built from a directions response.
// Cumulative distances are computed once at construction; all queries are
// safe for concurrent use.
type RoutePath struct {
	points     []domain.GeoPoint
	cumulative []float64
	start      domain.RouteEndpoint
	end        domain.RouteEndpoint
}

// NewRoutePath builds a path from an already flattened point sequence. The
// start and end carry no address.
func NewRoutePath(points []domain.GeoPoint) *RoutePath {
	p := &RoutePath{points: append([]domain.GeoPoint(nil), points...)}
	p.measure()
	if n := len(p.points); n > 0 {
		p.start = domain.RouteEndpoint{Location: p.points[0]}
		p.end = domain.RouteEndpoint{Location: p.points[n-1]}
	}
	return p
}

// Build flattens legs into a single path, leg by leg then step by step.
// Consecutive duplicate points are kept.
func Build(legs []domain.Leg) *RoutePath {
	var n int
	for _, leg := range legs {
		for _, step := range leg.Steps {
			n += len(step.Points)
		}
	}

	p := &RoutePath{points: make([]domain.GeoPoint, 0, n)}
	for _, leg := range legs {
		for _, step := range leg.Steps {
			p.points = append(p.points, step.Points...)
		}
	}
	p.measure()

	if len(legs) > 0 {
		first, last := legs[0], legs[len(legs)-1]
		p.start = domain.RouteEndpoint{Location: first.StartLocation, Address: first.StartAddress}
		p.end = domain.RouteEndpoint{Location: last.EndLocation, Address: last.EndAddress}
	}
	return p
}

// Restore rebuilds a path from previously flattened points and its endpoints.
func Restore(points []domain.GeoPoint, start, end domain.RouteEndpoint) *RoutePath {
	p := NewRoutePath(points)
	p.start, p.end = start, end
	return p
}

// BuildFromDirections builds the path for the first route of a directions
// response. It returns ErrDegeneratePath if the response has no routes.
func BuildFromDirections(d *domain.Directions) (*RoutePath, error) {
	if d == nil || len(d.Routes) == 0 {
		return nil, ErrDegeneratePath
	}
	return Build(d.Routes[0].Legs), nil
}

func (p *RoutePath) measure() {
	p.cumulative = make([]float64, len(p.points))
	for i := 1; i < len(p.points); i++ {
		p.cumulative[i] = p.cumulative[i-1] + Distance(p.points[i], p.points[i-1])
	}
}

// Len returns the number of vertices.
func (p *RoutePath) Len() int { return len(p.points) }

// Points returns a copy of the vertices.
func (p *RoutePath) Points() []domain.GeoPoint {
	return append([]domain.GeoPoint(nil), p.points...)
}

// Slice returns a copy of the first n vertices, clamped to the path length.
func (p *RoutePath) Slice(n int) []domain.GeoPoint {
	if n < 0 {
		n = 0
	}
	if n > len(p.points) {
		n = len(p.points)
	}
	return append([]domain.GeoPoint(nil), p.points[:n]...)
}

// Start is where the route begins.
func (p *RoutePath) Start() domain.RouteEndpoint { return p.start }

// End is where the route finishes.
func (p *RoutePath) End() domain.RouteEndpoint { return p.end }

// TotalLength is the sum of all segment lengths in meters.
func (p *RoutePath) TotalLength() float64 {
	if len(p.cumulative) == 0 {
		return 0
	}
	return p.cumulative[len(p.cumulative)-1]
}

// Point returns vertex i. Like slice indexing it panics unless 0 <= i < Len();
// indexes from IndexAtDistance are always in range.
func (p *RoutePath) Point(i int) domain.GeoPoint {
	return p.points[i]
}

// DistanceAt returns the cumulative distance in meters from vertex 0 to
// vertex i. It panics unless 0 <= i < Len().
func (p *RoutePath) DistanceAt(i int) float64 {
	return p.cumulative[i]
}

// Bounds returns the bounding box of all vertices.
func (p *RoutePath) Bounds() domain.Bounds {
	var b domain.Bounds
	for i, pt := range p.points {
		if i == 0 {
			b = domain.Bounds{MinLat: pt.Lat, MinLon: pt.Lon, MaxLat: pt.Lat, MaxLon: pt.Lon}
			continue
		}
		b.MinLat = math.Min(b.MinLat, pt.Lat)
		b.MinLon = math.Min(b.MinLon, pt.Lon)
		b.MaxLat = math.Max(b.MaxLat, pt.Lat)
		b.MaxLon = math.Max(b.MaxLon, pt.Lon)
	}
	return b
}

// reach returns the first vertex whose cumulative distance is >= meters, or
// len(points) if the path is shorter than meters.
func (p *RoutePath) reach(meters float64) int {
	return sort.Search(len(p.cumulative), func(i int) bool {
		return p.cumulative[i] >= meters
	})
}

// PointAtDistance returns the point meters along the path, interpolating
// latitude and longitude linearly between the two bracketing vertices.
// Zero always yields the first vertex. It reports false for negative
// distances, distances past the end, and paths with fewer than two vertices.
func (p *RoutePath) PointAtDistance(meters float64) (domain.GeoPoint, bool) {
	pt, err := p.Locate(meters)
	return pt, err == nil
}

// Locate is PointAtDistance with the reason for a missing result.
func (p *RoutePath) Locate(meters float64) (domain.GeoPoint, error) {
	switch {
	case meters == 0 && len(p.points) > 0:
		return p.points[0], nil
	case meters < 0 || math.IsNaN(meters):
		return domain.GeoPoint{}, ErrInvalidDistance
	case len(p.points) < 2:
		return domain.GeoPoint{}, ErrDegeneratePath
	}

	i := p.reach(meters)
	if i == len(p.points) {
		return domain.GeoPoint{}, ErrOutOfRange
	}

	// meters > 0 = cumulative[0], so i >= 1.
	from, to := p.points[i-1], p.points[i]
	oldDistance, currentDistance := p.cumulative[i-1], p.cumulative[i]

	var m float64
	if currentDistance != oldDistance {
		m = (meters - oldDistance) / (currentDistance - oldDistance)
	}

	return domain.GeoPoint{
		Lat: from.Lat + (to.Lat-from.Lat)*m,
		Lon: from.Lon + (to.Lon-from.Lon)*m,
	}, nil
}

// IndexAtDistance returns the first vertex whose cumulative distance is at
// least meters. Zero yields index 0. It reports false for negative
// distances and distances past the end. A single-vertex path has length 0,
// so only a zero distance resolves on it.
func (p *RoutePath) IndexAtDistance(meters float64) (int, bool) {
	idx, err := p.LocateIndex(meters)
	return idx, err == nil
}

// LocateIndex is IndexAtDistance with the reason for a missing result.
func (p *RoutePath) LocateIndex(meters float64) (int, error) {
	switch {
	case len(p.points) == 0:
		return 0, ErrDegeneratePath
	case meters == 0:
		return 0, nil
	case meters < 0 || math.IsNaN(meters):
		return 0, ErrInvalidDistance
	}

	i := p.reach(meters)
	if i == len(p.points) {
		return 0, ErrOutOfRange
	}
	return i, nil
}
