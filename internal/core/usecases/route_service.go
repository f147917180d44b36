package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
	"github.com/samirrijal/mapme/internal/pkg/geospatial"
	"github.com/samirrijal/mapme/internal/pkg/metrics"
	"github.com/samirrijal/mapme/internal/pkg/telemetry"
)

const (
	routeCacheTTL    = 24 * 60 * 60 // 1 day
	progressCacheTTL = 60

	// routeLoadTimeout bounds a shared load; it no longer follows any one caller.
	routeLoadTimeout = 30 * time.Second
)

// cachedRoute is the cache record of a built route. Directions geometry
// arrives polyline-encoded, so re-encoding it loses nothing.
type cachedRoute struct {
	Polyline string               `json:"polyline"`
	Start    domain.RouteEndpoint `json:"start"`
	End      domain.RouteEndpoint `json:"end"`
}

// RouteService loads map routes and places athletes on them.
type RouteService struct {
	maps       *MapService
	athletes   *AthleteService
	directions ports.DirectionsProvider
	geocoder   ports.Geocoder
	cache      ports.CacheService
	views      *RouteViewStore
	mode       domain.TravelMode
	group      singleflight.Group
	now        func() time.Time
}

// NewRouteService creates a new RouteService. geocoder and cache may be nil.
func NewRouteService(
	maps *MapService,
	athletes *AthleteService,
	directions ports.DirectionsProvider,
	geocoder ports.Geocoder,
	cache ports.CacheService,
	views *RouteViewStore,
	mode domain.TravelMode,
) *RouteService {
	if mode == "" {
		mode = domain.TravelModeWalking
	}
	return &RouteService{
		maps:       maps,
		athletes:   athletes,
		directions: directions,
		geocoder:   geocoder,
		cache:      cache,
		views:      views,
		mode:       mode,
		now:        time.Now,
	}
}

// View returns the current view of a map, loading it on first use.
// Concurrent first loads of the same map share one fetch.
func (s *RouteService) View(ctx context.Context, code string) (*RouteView, error) {
	if v := s.views.Get(code); v != nil {
		return v, nil
	}
	return s.shared(ctx, "view:"+code, func(ctx context.Context) (*RouteView, error) {
		if v := s.views.Get(code); v != nil {
			return v, nil
		}
		return s.load(ctx, code, false)
	})
}

// Reload rebuilds a map's route from the directions provider and swaps it in.
// Requests already holding the previous view keep using it; cached
// leaderboards computed on the old geometry are dropped.
func (s *RouteService) Reload(ctx context.Context, code string) (*RouteView, error) {
	v, err := s.shared(ctx, "reload:"+code, func(ctx context.Context) (*RouteView, error) {
		return s.load(ctx, code, true)
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateProgress(ctx, code)
	return v, nil
}

// shared runs fn once per key for all concurrent callers. The load is
// detached from the first caller's cancellation and bounded by
// routeLoadTimeout; each caller stops waiting when its own context ends.
func (s *RouteService) shared(ctx context.Context, key string, fn func(context.Context) (*RouteView, error)) (*RouteView, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), routeLoadTimeout)
		defer cancel()
		return fn(lctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*RouteView), nil
	}
}

func (s *RouteService) load(ctx context.Context, code string, fresh bool) (_ *RouteView, err error) {
	ctx, span := telemetry.Tracer("usecases").Start(ctx, "RouteService.load")
	span.SetAttributes(attribute.String("map.code", code), attribute.Bool("route.fresh", fresh))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	ticket := s.views.Ticket()

	m, err := s.maps.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	source := "cache"
	path := s.cachedPath(ctx, code, fresh)
	if path == nil {
		source = "directions"
		path, err = s.fetchPath(ctx, m)
		if err != nil {
			metrics.RouteLoads.WithLabelValues(source, "error").Inc()
			return nil, err
		}
	}

	// A load that ran out of time must not publish a view.
	if err := ctx.Err(); err != nil {
		metrics.RouteLoads.WithLabelValues(source, "cancelled").Inc()
		return nil, err
	}

	v := &RouteView{Map: m, Path: path, LoadedAt: s.now()}
	if !s.views.Store(code, v, ticket) {
		metrics.RouteLoads.WithLabelValues(source, "superseded").Inc()
		return s.views.Get(code), nil
	}

	metrics.RouteLoads.WithLabelValues(source, "ok").Inc()
	metrics.RouteLoadDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	metrics.RouteVertices.WithLabelValues(code).Set(float64(path.Len()))
	metrics.RouteLengthMeters.WithLabelValues(code).Set(path.TotalLength())

	slog.InfoContext(ctx, "route loaded",
		"map", code,
		"source", source,
		"vertices", path.Len(),
		"length_m", path.TotalLength(),
	)
	return v, nil
}

func (s *RouteService) cachedPath(ctx context.Context, code string, fresh bool) *geospatial.RoutePath {
	if s.cache == nil || fresh {
		return nil
	}
	data, err := s.cache.Get(ctx, "route:"+code)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("route").Inc()
		return nil
	}
	var rec cachedRoute
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	points, err := geospatial.DecodePolyline(rec.Polyline)
	if err != nil {
		return nil
	}
	metrics.CacheHits.WithLabelValues("route").Inc()
	return geospatial.Restore(points, rec.Start, rec.End)
}

func (s *RouteService) fetchPath(ctx context.Context, m *domain.Map) (*geospatial.RoutePath, error) {
	d, err := s.directions.Directions(ctx, domain.DirectionsRequest{
		Origin:      m.Origin(),
		Destination: m.Destination(),
		Mode:        s.mode,
	})
	if err != nil {
		return nil, fmt.Errorf("directions for map %s: %w", m.Code, err)
	}

	path, err := geospatial.BuildFromDirections(d)
	if err != nil {
		return nil, fmt.Errorf("build route for map %s: %w", m.Code, err)
	}

	if s.cache != nil {
		rec := cachedRoute{
			Polyline: geospatial.EncodePolyline(path.Points()),
			Start:    path.Start(),
			End:      path.End(),
		}
		if data, err := json.Marshal(rec); err == nil {
			_ = s.cache.Set(ctx, "route:"+m.Code, data, routeCacheTTL)
		}
	}
	return path, nil
}

// Progress returns every athlete on a map placed on its route, leader first.
// Results are cached briefly and dropped by InvalidateProgress.
func (s *RouteService) Progress(ctx context.Context, code string) (*RouteView, []domain.Progress, error) {
	v, err := s.View(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	if cached, ok := s.cachedProgress(ctx, code); ok {
		return v, cached, nil
	}

	year := v.Map.StatsYear(s.now())
	athletes, err := s.athletes.ListByMap(ctx, code, year)
	if err != nil {
		return nil, nil, fmt.Errorf("list athletes for map %s: %w", code, err)
	}

	out := make([]domain.Progress, 0, len(athletes))
	for i := range athletes {
		p := v.Progress(&athletes[i], year)
		p.Nearest = s.nearestLocality(ctx, p.Position)
		out = append(out, p)
	}

	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, progressKey(code), data, progressCacheTTL)
		}
	}
	return v, out, nil
}

// InvalidateProgress drops the cached leaderboard of each map.
func (s *RouteService) InvalidateProgress(ctx context.Context, codes ...string) {
	if s.cache == nil {
		return
	}
	for _, code := range codes {
		if err := s.cache.Delete(ctx, progressKey(code)); err != nil {
			slog.DebugContext(ctx, "progress cache delete failed", "map", code, "error", err)
		}
	}
}

func progressKey(code string) string { return "progress:" + code }

func (s *RouteService) cachedProgress(ctx context.Context, code string) ([]domain.Progress, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, progressKey(code))
	if err != nil {
		metrics.CacheMisses.WithLabelValues("progress").Inc()
		return nil, false
	}
	var out []domain.Progress
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("progress").Inc()
	return out, true
}

// nearestLocality is best effort; lookups are cached per ~100 m cell.
func (s *RouteService) nearestLocality(ctx context.Context, p domain.GeoPoint) *domain.Locality {
	if s.geocoder == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("geocode:%.3f:%.3f", p.Lat, p.Lon)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var loc domain.Locality
			if err := json.Unmarshal(data, &loc); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return &loc
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	loc, err := s.geocoder.NearestLocality(ctx, p)
	if err != nil {
		slog.DebugContext(ctx, "reverse geocode failed", "lat", p.Lat, "lon", p.Lon, "error", err)
		return nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(loc); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, routeCacheTTL)
		}
	}
	return loc
}

// LoadedMaps lists the maps whose route is currently loaded.
func (s *RouteService) LoadedMaps() []string {
	return s.views.Codes()
}
