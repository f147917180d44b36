package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
	"github.com/samirrijal/mapme/internal/core/usecases"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
)

// --- Mock DirectionsProvider ---

type mockDirections struct {
	fn    func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error)
	calls atomic.Int32
}

func (m *mockDirections) Directions(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
	m.calls.Add(1)
	return m.fn(ctx, req)
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	calls atomic.Int32
}

func (m *mockGeocoder) NearestLocality(ctx context.Context, p domain.GeoPoint) (*domain.Locality, error) {
	m.calls.Add(1)
	return &domain.Locality{Name: "Mid Point", Country: "Nowhere"}, nil
}

// equatorDirections is a 3-vertex route along the equator, ~2226 m long.
func equatorDirections(endLon float64) *domain.Directions {
	return &domain.Directions{Routes: []domain.DirectionsRoute{{
		Legs: []domain.Leg{{
			StartLocation: domain.GeoPoint{Lat: 0, Lon: 0},
			EndLocation:   domain.GeoPoint{Lat: 0, Lon: endLon},
			StartAddress:  "Start Town, Nowhere",
			EndAddress:    "End Town, Nowhere",
			Steps: []domain.Step{
				{Points: []domain.GeoPoint{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}}},
				{Points: []domain.GeoPoint{{Lat: 0, Lon: endLon}}},
			},
		}},
	}}}
}

type routeFixture struct {
	svc        *usecases.RouteService
	views      *usecases.RouteViewStore
	directions *mockDirections
	athletes   *mockAthleteRepo
}

func newRouteFixture(t *testing.T, cache *memCache) *routeFixture {
	t.Helper()
	maps := &mockMapRepo{
		getByCodeFn: func(ctx context.Context, code string) (*domain.Map, error) {
			m := testMap(code)
			m.Year = 2024
			return m, nil
		},
	}
	athletes := &mockAthleteRepo{}
	directions := &mockDirections{
		fn: func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
			return equatorDirections(0.02), nil
		},
	}
	views := usecases.NewRouteViewStore()
	var c ports.CacheService
	if cache != nil {
		c = cache
	}
	svc := usecases.NewRouteService(
		usecases.NewMapService(maps, athletes, nil),
		usecases.NewAthleteService(athletes, nil, time.Hour),
		directions, nil, c, views, "",
	)
	return &routeFixture{svc: svc, views: views, directions: directions, athletes: athletes}
}

// --- Tests ---

func TestRouteService_View_BuildsRoute(t *testing.T) {
	f := newRouteFixture(t, nil)
	var got domain.DirectionsRequest
	f.directions.fn = func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
		got = req
		return equatorDirections(0.02), nil
	}

	v, err := f.svc.View(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Origin != "Land's End, UK" || got.Destination != "John o' Groats, UK" {
		t.Errorf("unexpected directions request: %+v", got)
	}
	if got.Mode != domain.TravelModeWalking {
		t.Errorf("expected walking mode, got %s", got.Mode)
	}
	if v.Path.Len() != 3 {
		t.Errorf("expected 3 vertices, got %d", v.Path.Len())
	}
	if v.Path.Start().Address != "Start Town, Nowhere" || v.Path.End().Address != "End Town, Nowhere" {
		t.Errorf("unexpected endpoints: %+v %+v", v.Path.Start(), v.Path.End())
	}
}

func TestRouteService_View_LoadsOnce(t *testing.T) {
	f := newRouteFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.View(context.Background(), "lejog"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := f.directions.calls.Load(); n != 1 {
		t.Errorf("expected 1 directions call, got %d", n)
	}
}

func TestRouteService_View_DirectionsError(t *testing.T) {
	f := newRouteFixture(t, nil)
	f.directions.fn = func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
		return nil, errors.New("ZERO_RESULTS")
	}

	if _, err := f.svc.View(context.Background(), "lejog"); err == nil {
		t.Fatal("expected error")
	}
	if f.views.Get("lejog") != nil {
		t.Error("failed load must not store a view")
	}
}

func TestRouteService_View_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := newRouteFixture(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	f.directions.fn = func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return equatorDirections(0.02), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.View(ctx, "lejog")
		firstErr <- err
	}()
	<-started

	type result struct {
		v   *usecases.RouteView
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := f.svc.View(context.Background(), "lejog")
		second <- result{v, err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}

	close(release)
	res := <-second
	if res.err != nil {
		t.Fatalf("expected the other caller to get the view, got %v", res.err)
	}
	if res.v == nil || f.views.Get("lejog") != res.v {
		t.Error("expected the shared load to store its view")
	}
	if n := f.directions.calls.Load(); n != 1 {
		t.Errorf("expected 1 directions call, got %d", n)
	}
}

func TestRouteService_Reload_SwapsView(t *testing.T) {
	f := newRouteFixture(t, nil)

	old, err := f.svc.View(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldTotal := old.Path.TotalLength()

	f.directions.fn = func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
		return equatorDirections(0.03), nil
	}
	next, err := f.svc.Reload(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next == old {
		t.Fatal("expected a new view")
	}
	if f.views.Get("lejog") != next {
		t.Error("expected the store to hold the reloaded view")
	}
	if next.Path.TotalLength() <= oldTotal {
		t.Errorf("expected longer route after reload, got %v <= %v", next.Path.TotalLength(), oldTotal)
	}
	if old.Path.TotalLength() != oldTotal || old.Path.Len() != 3 {
		t.Error("previous view must stay intact")
	}
}

func TestRouteService_UsesCachedRoute(t *testing.T) {
	cache := newMemCache()
	first := newRouteFixture(t, cache)
	v1, err := first.svc.View(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cache.has("route:lejog") {
		t.Fatal("expected route to be cached")
	}

	second := newRouteFixture(t, cache)
	second.directions.fn = func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
		return nil, errors.New("must not be called")
	}
	v2, err := second.svc.View(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v2.Path.Len() != v1.Path.Len() {
		t.Errorf("expected %d vertices from cache, got %d", v1.Path.Len(), v2.Path.Len())
	}
	if v2.Path.End().Address != v1.Path.End().Address {
		t.Errorf("expected cached end address %q, got %q", v1.Path.End().Address, v2.Path.End().Address)
	}
	if n := second.directions.calls.Load(); n != 0 {
		t.Errorf("expected no directions calls, got %d", n)
	}
}

func TestRouteService_Progress(t *testing.T) {
	f := newRouteFixture(t, nil)
	f.athletes.listByMapFn = func(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
		return []domain.Athlete{
			athleteWithTotal(1, year, 5000),
			athleteWithTotal(2, year, 1113.19),
			athleteWithTotal(3, year, 0),
		}, nil
	}

	v, progress, err := f.svc.Progress(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(progress) != 3 {
		t.Fatalf("expected 3 athletes, got %d", len(progress))
	}

	leader := progress[0]
	if !leader.Finished || leader.Percent != 100 {
		t.Errorf("expected leader to have finished, got %+v", leader)
	}
	if leader.Position != v.Path.End().Location {
		t.Errorf("expected leader at route end, got %+v", leader.Position)
	}
	if leader.RemainingKm != 0 {
		t.Errorf("expected 0 km remaining, got %v", leader.RemainingKm)
	}

	mid := progress[1]
	if mid.Finished || mid.Percent < 49 || mid.Percent > 51 {
		t.Errorf("expected ~50%%, got %+v", mid)
	}
	if mid.Index == nil || *mid.Index != 1 {
		t.Errorf("expected index 1, got %v", mid.Index)
	}

	last := progress[2]
	if last.Position != (domain.GeoPoint{Lat: 0, Lon: 0}) || last.Percent != 0 {
		t.Errorf("expected athlete at start, got %+v", last)
	}
	if last.Index == nil || *last.Index != 0 {
		t.Errorf("expected index 0, got %v", last.Index)
	}
}

func TestRouteService_Progress_NearestLocalityCached(t *testing.T) {
	cache := newMemCache()
	f := newRouteFixture(t, cache)
	geo := &mockGeocoder{}
	f.svc = usecases.NewRouteService(
		usecases.NewMapService(&mockMapRepo{
			getByCodeFn: func(ctx context.Context, code string) (*domain.Map, error) { return testMap(code), nil },
		}, f.athletes, nil),
		usecases.NewAthleteService(f.athletes, nil, time.Hour),
		f.directions, geo, cache, f.views, domain.TravelModeWalking,
	)
	f.athletes.listByMapFn = func(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
		return []domain.Athlete{athleteWithTotal(1, year, 100), athleteWithTotal(2, year, 100)}, nil
	}

	_, progress, err := f.svc.Progress(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range progress {
		if p.Nearest == nil || p.Nearest.Name != "Mid Point" {
			t.Errorf("expected nearest locality, got %+v", p.Nearest)
		}
	}
	if n := geo.calls.Load(); n != 1 {
		t.Errorf("expected 1 geocoder call for the same cell, got %d", n)
	}
}

func TestRouteViewStore_StaleTicketDiscarded(t *testing.T) {
	store := usecases.NewRouteViewStore()
	path := geospatial.NewRoutePath([]domain.GeoPoint{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}})

	early := store.Ticket()
	late := store.Ticket()

	newer := &usecases.RouteView{Path: path}
	older := &usecases.RouteView{Path: path}

	if !store.Store("lejog", newer, late) {
		t.Fatal("expected first store to succeed")
	}
	if store.Store("lejog", older, early) {
		t.Fatal("expected stale store to be rejected")
	}
	if store.Get("lejog") != newer {
		t.Error("expected the later view to remain")
	}

	codes := store.Codes()
	if len(codes) != 1 || codes[0] != "lejog" {
		t.Errorf("expected [lejog], got %v", codes)
	}
	store.Delete("lejog")
	if store.Get("lejog") != nil {
		t.Error("expected view to be deleted")
	}
}

func TestRouteView_ProgressLine(t *testing.T) {
	path := geospatial.NewRoutePath([]domain.GeoPoint{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}, {Lat: 0, Lon: 0.02},
	})
	v := &usecases.RouteView{Path: path}

	if got := v.ProgressLine(0); len(got) != 1 {
		t.Errorf("expected 1 vertex at distance 0, got %d", len(got))
	}
	if got := v.ProgressLine(500); len(got) != 2 {
		t.Errorf("expected 2 vertices at 500 m, got %d", len(got))
	}
	if got := v.ProgressLine(path.TotalLength() + 1); len(got) != 3 {
		t.Errorf("expected the full route beyond the end, got %d", len(got))
	}
	if got := v.ProgressLine(-1); got != nil {
		t.Errorf("expected nil for a negative distance, got %v", got)
	}
}

func TestRouteService_Reload_DropsCachedProgress(t *testing.T) {
	cache := newMemCache()
	f := newRouteFixture(t, cache)
	f.athletes.listByMapFn = func(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
		return []domain.Athlete{athleteWithTotal(1, year, 2000)}, nil
	}

	_, before, err := f.svc.Progress(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cache.has("progress:lejog") {
		t.Fatal("expected leaderboard to be cached")
	}

	f.directions.fn = func(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
		return equatorDirections(0.03), nil
	}
	if _, err := f.svc.Reload(context.Background(), "lejog"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.has("progress:lejog") {
		t.Error("expected reload to drop the cached leaderboard")
	}

	_, after, err := f.svc.Progress(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after[0].Percent >= before[0].Percent {
		t.Errorf("expected a smaller share of the longer route, got %v >= %v", after[0].Percent, before[0].Percent)
	}
}

func TestRouteService_Progress_CachedUntilInvalidated(t *testing.T) {
	cache := newMemCache()
	f := newRouteFixture(t, cache)
	lists := 0
	total := 100.0
	f.athletes.listByMapFn = func(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
		lists++
		return []domain.Athlete{athleteWithTotal(1, year, total)}, nil
	}

	if _, _, err := f.svc.Progress(context.Background(), "lejog"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total = 2000
	_, progress, err := f.svc.Progress(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lists != 1 || progress[0].Distance != 100 {
		t.Fatalf("expected cached leaderboard, got %d lists and distance %v", lists, progress[0].Distance)
	}

	f.svc.InvalidateProgress(context.Background(), "lejog")
	_, progress, err = f.svc.Progress(context.Background(), "lejog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lists != 2 || progress[0].Distance != 2000 {
		t.Errorf("expected fresh leaderboard, got %d lists and distance %v", lists, progress[0].Distance)
	}
}
