package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/mapme/internal/adapters/strava"
	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
	"github.com/samirrijal/mapme/internal/core/usecases"
	"github.com/samirrijal/mapme/internal/pkg/metrics"
)

// Application error types that are never retried.
const (
	ErrTypeUnauthorized = "Unauthorized"
	ErrTypeNotFound     = "NotFound"
)

// AthleteState is the part of an athlete a refresh needs.
type AthleteState struct {
	AthleteID    int64
	RefreshToken string
	Maps         []string
}

// YearToDate is a fetched total and the refresh token to keep.
type YearToDate struct {
	Total        float64
	RefreshToken string
}

// RefreshActivities holds the activity implementations for the refresh workflow.
type RefreshActivities struct {
	Athletes *usecases.AthleteService
	Stats    ports.StatsProvider
	Events   ports.EventPublisher
}

// LoadAthlete reads the athlete's token and maps.
func (a *RefreshActivities) LoadAthlete(ctx context.Context, athleteID int64) (*AthleteState, error) {
	ath, err := a.Athletes.Get(ctx, athleteID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.StatsRefreshes.WithLabelValues("not_found").Inc()
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("athlete %d not found", athleteID), ErrTypeNotFound, err)
		}
		return nil, fmt.Errorf("load athlete %d: %w", athleteID, err)
	}
	return &AthleteState{AthleteID: ath.ID, RefreshToken: ath.RefreshToken, Maps: ath.Maps}, nil
}

// FetchYearToDate asks Strava for the athlete's year-to-date run distance.
func (a *RefreshActivities) FetchYearToDate(ctx context.Context, state AthleteState) (*YearToDate, error) {
	total, token, err := a.Stats.YearToDateRunDistance(ctx, state.AthleteID, state.RefreshToken)
	if err != nil {
		if errors.Is(err, strava.ErrUnauthorized) {
			metrics.StatsRefreshes.WithLabelValues("unauthorized").Inc()
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("athlete %d revoked access", state.AthleteID), ErrTypeUnauthorized, err)
		}
		activity.GetLogger(ctx).Warn("strava stats request failed", "athleteID", state.AthleteID, "error", err)
		return nil, fmt.Errorf("fetch stats for athlete %d: %w", state.AthleteID, err)
	}
	if token == "" {
		token = state.RefreshToken
	}
	return &YearToDate{Total: total, RefreshToken: token}, nil
}

// SaveStats stores the total for the current year and month.
func (a *RefreshActivities) SaveStats(ctx context.Context, state AthleteState, total float64) error {
	ath := &domain.Athlete{ID: state.AthleteID, Maps: state.Maps}
	if _, err := a.Athletes.RecordTotal(ctx, ath, total, state.RefreshToken); err != nil {
		metrics.StatsRefreshes.WithLabelValues("error").Inc()
		return err
	}
	metrics.StatsRefreshes.WithLabelValues("ok").Inc()
	return nil
}

// PublishStatsUpdated announces the new total on every map the athlete is on.
func (a *RefreshActivities) PublishStatsUpdated(ctx context.Context, state AthleteState, total float64) error {
	if a.Events == nil || len(state.Maps) == 0 {
		return nil
	}
	update := a.Athletes.StatsUpdate(&domain.Athlete{ID: state.AthleteID, Maps: state.Maps}, total)
	if err := a.Events.PublishStatsUpdated(ctx, update); err != nil {
		return fmt.Errorf("publish stats for athlete %d: %w", state.AthleteID, err)
	}
	return nil
}
