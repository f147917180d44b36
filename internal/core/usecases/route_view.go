package usecases

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
)

// RouteView is the loaded state of one map: the map details and the route
// built from its directions. A view is never modified after it is stored.
type RouteView struct {
	Map      *domain.Map
	Path     *geospatial.RoutePath
	LoadedAt time.Time

	ticket uint64
}

// Progress places an athlete's year total on the route. Athletes at or past
// the total length sit on the route end.
func (v *RouteView) Progress(a *domain.Athlete, year int) domain.Progress {
	distance := a.DistanceForYear(year)
	total := v.Path.TotalLength()

	p := domain.Progress{
		Athlete:     a,
		Distance:    distance,
		RemainingKm: round2(math.Max(total-distance, 0) / 1000),
	}

	if distance >= total {
		p.Position = v.Path.End().Location
		p.Percent = 100
		p.Finished = true
		if n := v.Path.Len(); n > 0 {
			last := n - 1
			p.Index = &last
		}
		return p
	}

	if pt, ok := v.Path.PointAtDistance(distance); ok {
		p.Position = pt
	} else {
		p.Position = v.Path.Start().Location
	}
	if idx, ok := v.Path.IndexAtDistance(distance); ok {
		p.Index = &idx
	}
	p.Percent = math.Min(round2(distance/1000/(total/1000)*100), 100)
	return p
}

// ProgressLine returns the route vertices covered by distance, from the start
// up to and including the first vertex at or beyond it.
func (v *RouteView) ProgressLine(distance float64) []domain.GeoPoint {
	idx, ok := v.Path.IndexAtDistance(distance)
	if !ok {
		if distance >= v.Path.TotalLength() {
			return v.Path.Points()
		}
		return nil
	}
	return v.Path.Slice(idx + 1)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// RouteViewStore holds the current RouteView of each map. Readers always see
// a complete view, either the previous one or its replacement.
type RouteViewStore struct {
	mu      sync.Mutex
	views   map[string]*atomic.Pointer[RouteView]
	tickets atomic.Uint64
}

// NewRouteViewStore creates an empty store.
func NewRouteViewStore() *RouteViewStore {
	return &RouteViewStore{views: make(map[string]*atomic.Pointer[RouteView])}
}

func (s *RouteViewStore) slot(code string) *atomic.Pointer[RouteView] {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.views[code]
	if !ok {
		p = new(atomic.Pointer[RouteView])
		s.views[code] = p
	}
	return p
}

// Ticket orders loads. Take one before fetching anything for a new view.
func (s *RouteViewStore) Ticket() uint64 {
	return s.tickets.Add(1)
}

// Get returns the current view of a map, or nil.
func (s *RouteViewStore) Get(code string) *RouteView {
	return s.slot(code).Load()
}

// Store publishes v unless a view from a later ticket is already in place.
// It reports whether v was stored.
func (s *RouteViewStore) Store(code string, v *RouteView, ticket uint64) bool {
	v.ticket = ticket
	p := s.slot(code)
	for {
		cur := p.Load()
		if cur != nil && cur.ticket > ticket {
			return false
		}
		if p.CompareAndSwap(cur, v) {
			return true
		}
	}
}

// Delete drops the view of a map.
func (s *RouteViewStore) Delete(code string) {
	s.slot(code).Store(nil)
}

// Codes lists maps that currently have a view.
func (s *RouteViewStore) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0, len(s.views))
	for code, p := range s.views {
		if p.Load() != nil {
			codes = append(codes, code)
		}
	}
	return codes
}
