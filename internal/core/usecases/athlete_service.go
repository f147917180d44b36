package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
	"github.com/samirrijal/mapme/internal/pkg/metrics"
)

// AthleteService handles athlete accounts and their distance totals.
type AthleteService struct {
	athletes   ports.AthleteRepository
	refresher  ports.RefreshScheduler
	staleAfter time.Duration
	now        func() time.Time
}

// NewAthleteService creates a new AthleteService. Athletes whose totals are
// older than staleAfter get a refresh scheduled when they are listed.
func NewAthleteService(athletes ports.AthleteRepository, refresher ports.RefreshScheduler, staleAfter time.Duration) *AthleteService {
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}
	return &AthleteService{
		athletes:   athletes,
		refresher:  refresher,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SetClock replaces the service clock. Used by tests.
func (s *AthleteService) SetClock(now func() time.Time) {
	s.now = now
}

// Login registers an athlete on first sign-in and schedules their first
// stats refresh. A known athlete signing in with a new refresh token has it
// stored and refreshed, so revoked access recovers.
func (s *AthleteService) Login(ctx context.Context, a *domain.Athlete) (*domain.Athlete, error) {
	existing, err := s.athletes.GetByID(ctx, a.ID)
	if err == nil {
		if a.RefreshToken == "" || a.RefreshToken == existing.RefreshToken {
			return existing, nil
		}
		if err := s.athletes.UpdateRefreshToken(ctx, a.ID, a.RefreshToken); err != nil {
			return nil, fmt.Errorf("update token of athlete %d: %w", a.ID, err)
		}
		existing.RefreshToken = a.RefreshToken
		slog.InfoContext(ctx, "athlete token renewed", "athlete_id", a.ID)
		s.requestRefresh(ctx, a.ID)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find athlete %d: %w", a.ID, err)
	}

	a.DateCreated = s.now()
	if a.Stats == nil {
		a.Stats = domain.Stats{}
	}
	if err := s.athletes.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("insert athlete %d: %w", a.ID, err)
	}
	slog.InfoContext(ctx, "athlete registered", "athlete_id", a.ID, "username", a.Username)

	s.requestRefresh(ctx, a.ID)
	return a, nil
}

// Get returns an athlete by Strava ID.
func (s *AthleteService) Get(ctx context.Context, id int64) (*domain.Athlete, error) {
	return s.athletes.GetByID(ctx, id)
}

// ListByMap returns a map's athletes, largest year total first. Stale
// athletes get a background refresh; the stored totals are returned as-is.
func (s *AthleteService) ListByMap(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
	athletes, err := s.athletes.ListByMap(ctx, code, year)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range athletes {
		if athletes[i].IsStale(now, s.staleAfter) {
			s.requestRefresh(ctx, athletes[i].ID)
		}
	}
	return athletes, nil
}

// RecordTotal stores a fresh year-to-date run total for the current year and
// month and returns the resulting update event.
func (s *AthleteService) RecordTotal(ctx context.Context, a *domain.Athlete, total float64, refreshToken string) (*domain.StatsUpdate, error) {
	update := s.StatsUpdate(a, total)
	if err := s.athletes.UpdateStats(ctx, a.ID, update.Year, update.Month, total, refreshToken); err != nil {
		return nil, fmt.Errorf("update stats for athlete %d: %w", a.ID, err)
	}
	return update, nil
}

// StatsUpdate is the event announcing total as the athlete's current figure.
func (s *AthleteService) StatsUpdate(a *domain.Athlete, total float64) *domain.StatsUpdate {
	now := s.now()
	return &domain.StatsUpdate{
		AthleteID: a.ID,
		Year:      now.Year(),
		Month:     int(now.Month()),
		Total:     total,
		Maps:      a.Maps,
		UpdatedAt: now,
	}
}

func (s *AthleteService) requestRefresh(ctx context.Context, id int64) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.ScheduleRefresh(ctx, id); err != nil {
		slog.WarnContext(ctx, "schedule stats refresh failed", "athlete_id", id, "error", err)
		return
	}
	metrics.StatsRefreshRequests.Inc()
}
