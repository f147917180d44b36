package ports

import (
	"context"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishRefreshRequest(ctx context.Context, req *domain.RefreshRequest) error
	PublishStatsUpdated(ctx context.Context, update *domain.StatsUpdate) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeRefreshRequests(ctx context.Context, handler func(ctx context.Context, req *domain.RefreshRequest) error) error
	SubscribeStatsUpdated(ctx context.Context, handler func(ctx context.Context, update *domain.StatsUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// DirectionsProvider resolves a route between two places.
type DirectionsProvider interface {
	Directions(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error)
}

// Geocoder resolves points to place names.
type Geocoder interface {
	NearestLocality(ctx context.Context, p domain.GeoPoint) (*domain.Locality, error)
}

// StatsProvider reads athlete totals from the activity platform.
type StatsProvider interface {
	// YearToDateRunDistance returns the athlete's run distance this year in
	// meters and the refresh token to store for the next call.
	YearToDateRunDistance(ctx context.Context, athleteID int64, refreshToken string) (float64, string, error)
}

// AthleteAuthenticator performs the OAuth login flow for athletes.
type AthleteAuthenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.Athlete, error)
}

// RefreshScheduler starts an asynchronous stats refresh for an athlete.
type RefreshScheduler interface {
	ScheduleRefresh(ctx context.Context, athleteID int64) error
}
