package postgres

import (
	"context"
	"strconv"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// AthleteRepo implements ports.AthleteRepository.
type AthleteRepo struct {
	db *DB
}

func NewAthleteRepo(db *DB) *AthleteRepo {
	return &AthleteRepo{db: db}
}

const athleteColumns = `id, username, given_name, family_name, COALESCE(profile_picture, ''),
	COALESCE(refresh_token, ''), maps, stats, date_created, last_updated`

func scanAthlete(row interface{ Scan(dest ...any) error }) (*domain.Athlete, error) {
	a := &domain.Athlete{}
	err := row.Scan(
		&a.ID, &a.Username, &a.GivenName, &a.FamilyName, &a.ProfilePicture,
		&a.RefreshToken, &a.Maps, &a.Stats, &a.DateCreated, &a.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if a.Stats == nil {
		a.Stats = domain.Stats{}
	}
	return a, nil
}

func (r *AthleteRepo) Insert(ctx context.Context, a *domain.Athlete) error {
	maps := a.Maps
	if maps == nil {
		maps = []string{}
	}
	stats := a.Stats
	if stats == nil {
		stats = domain.Stats{}
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO athletes (id, username, given_name, family_name, profile_picture,
			refresh_token, maps, stats, date_created)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Username, a.GivenName, a.FamilyName, a.ProfilePicture,
		a.RefreshToken, maps, stats, a.DateCreated)
	return err
}

func (r *AthleteRepo) GetByID(ctx context.Context, id int64) (*domain.Athlete, error) {
	a, err := scanAthlete(r.db.Pool.QueryRow(ctx, `
		SELECT `+athleteColumns+`
		FROM athletes WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ListByMap orders by the year's full run total; athletes without one sort last.
func (r *AthleteRepo) ListByMap(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+athleteColumns+`
		FROM athletes
		WHERE $1 = ANY(maps)
		ORDER BY (stats -> $2::text -> 'full' ->> 'total')::double precision DESC NULLS LAST, id
	`, code, strconv.Itoa(year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var athletes []domain.Athlete
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, err
		}
		athletes = append(athletes, *a)
	}
	return athletes, rows.Err()
}

// UpdateStats records the year total under both "full" and the month, and
// stamps last_updated. An empty refreshToken keeps the stored one.
func (r *AthleteRepo) UpdateStats(ctx context.Context, id int64, year, month int, total float64, refreshToken string) error {
	entry := domain.DistanceTotal{Type: domain.ActivityRun, Total: total}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE athletes SET
			stats = jsonb_set(
				jsonb_set(
					CASE WHEN stats ? $2 THEN stats ELSE jsonb_set(stats, ARRAY[$2], '{}'::jsonb) END,
					ARRAY[$2, 'full'], $4::jsonb),
				ARRAY[$2, $3], $4::jsonb),
			refresh_token = COALESCE(NULLIF($5, ''), refresh_token),
			last_updated = now()
		WHERE id = $1
	`, id, strconv.Itoa(year), strconv.Itoa(month), entry, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateRefreshToken stores the token from a new sign-in.
func (r *AthleteRepo) UpdateRefreshToken(ctx context.Context, id int64, refreshToken string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE athletes SET refresh_token = $2 WHERE id = $1`, id, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AthleteRepo) AddMap(ctx context.Context, id int64, code string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE athletes SET maps = array_append(maps, $2)
		WHERE id = $1 AND NOT ($2 = ANY(maps))
	`, id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM athletes WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
	}
	return nil
}
