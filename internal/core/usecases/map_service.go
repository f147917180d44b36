package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
	"github.com/samirrijal/mapme/internal/pkg/metrics"
)

// ErrWrongPasscode is returned when joining a private map with a bad passcode.
var ErrWrongPasscode = errors.New("wrong passcode")

// ErrMapClosed is returned when joining a map that is no longer active.
var ErrMapClosed = errors.New("map is not active")

// MapService handles map-related business logic.
type MapService struct {
	maps     ports.MapRepository
	athletes ports.AthleteRepository
	cache    ports.CacheService
}

// NewMapService creates a new MapService.
func NewMapService(maps ports.MapRepository, athletes ports.AthleteRepository, cache ports.CacheService) *MapService {
	return &MapService{maps: maps, athletes: athletes, cache: cache}
}

// Get returns a map by its code. The passcode is never populated.
func (s *MapService) Get(ctx context.Context, code string) (*domain.Map, error) {
	cacheKey := "maps:code:" + code
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var m domain.Map
			if err := json.Unmarshal(data, &m); err == nil {
				metrics.CacheHits.WithLabelValues("map").Inc()
				return &m, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("map").Inc()
	}

	m, err := s.maps.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(m); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600) // 10 min
		}
	}

	return m, nil
}

// ListPublic returns the active, non-private maps.
func (s *MapService) ListPublic(ctx context.Context) ([]domain.Map, error) {
	const cacheKey = "maps:public"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var maps []domain.Map
			if err := json.Unmarshal(data, &maps); err == nil {
				metrics.CacheHits.WithLabelValues("maps_public").Inc()
				return maps, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("maps_public").Inc()
	}

	maps, err := s.maps.ListPublic(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(maps); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300) // 5 min
		}
	}

	return maps, nil
}

// Save creates or updates a map and drops its cached copies.
func (s *MapService) Save(ctx context.Context, m *domain.Map) error {
	if m.Code == "" {
		return fmt.Errorf("map code must not be empty")
	}
	if err := s.maps.Upsert(ctx, m); err != nil {
		return fmt.Errorf("save map %s: %w", m.Code, err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "maps:code:"+m.Code)
		_ = s.cache.Delete(ctx, "maps:public")
	}
	return nil
}

// AddAthlete joins an athlete to a map. Private maps require their passcode.
func (s *MapService) AddAthlete(ctx context.Context, code string, athleteID int64, passcode string) error {
	m, err := s.maps.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !m.Active {
		return ErrMapClosed
	}
	if m.Private {
		ok, err := s.maps.VerifyPasscode(ctx, code, passcode)
		if err != nil {
			return fmt.Errorf("verify passcode: %w", err)
		}
		if !ok {
			return ErrWrongPasscode
		}
	}

	if err := s.athletes.AddMap(ctx, athleteID, code); err != nil {
		return fmt.Errorf("add athlete %d to map %s: %w", athleteID, code, err)
	}
	return nil
}
