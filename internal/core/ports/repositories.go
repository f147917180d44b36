package ports

import (
	"context"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// MapRepository persists maps.
type MapRepository interface {
	Upsert(ctx context.Context, m *domain.Map) error
	// GetByCode returns domain.ErrNotFound when no map has the code.
	GetByCode(ctx context.Context, code string) (*domain.Map, error)
	// ListPublic returns maps that are active and not private.
	ListPublic(ctx context.Context) ([]domain.Map, error)
	// VerifyPasscode reports whether passcode unlocks the map.
	VerifyPasscode(ctx context.Context, code, passcode string) (bool, error)
}

// AthleteRepository persists athletes and their totals.
type AthleteRepository interface {
	Insert(ctx context.Context, a *domain.Athlete) error
	// GetByID returns domain.ErrNotFound when the athlete is unknown.
	GetByID(ctx context.Context, id int64) (*domain.Athlete, error)
	// ListByMap returns the map's athletes ordered by their year total, largest first.
	ListByMap(ctx context.Context, code string, year int) ([]domain.Athlete, error)
	UpdateStats(ctx context.Context, id int64, year, month int, total float64, refreshToken string) error
	// UpdateRefreshToken replaces the stored Strava refresh token.
	UpdateRefreshToken(ctx context.Context, id int64, refreshToken string) error
	AddMap(ctx context.Context, id int64, code string) error
}
