package postgres

import (
	"context"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// MapRepo implements ports.MapRepository.
type MapRepo struct {
	db *DB
}

func NewMapRepo(db *DB) *MapRepo {
	return &MapRepo{db: db}
}

const mapColumns = `code, name, start_city, start_country, end_city, end_country,
	centre_lat, centre_lon, COALESCE(year, 0), private, active, created_at`

func scanMap(row interface{ Scan(dest ...any) error }) (*domain.Map, error) {
	m := &domain.Map{}
	err := row.Scan(
		&m.Code, &m.Name, &m.StartCity, &m.StartCountry, &m.EndCity, &m.EndCountry,
		&m.Centre.Lat, &m.Centre.Lon, &m.Year, &m.Private, &m.Active, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert creates or updates a map. An empty passcode keeps the stored one.
func (r *MapRepo) Upsert(ctx context.Context, m *domain.Map) error {
	var year *int
	if m.Year > 0 {
		year = &m.Year
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO maps (code, name, start_city, start_country, end_city, end_country,
			centre_lat, centre_lon, year, private, active, passcode_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			CASE WHEN $12 = '' THEN NULL ELSE crypt($12, gen_salt('bf')) END)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			start_city = EXCLUDED.start_city,
			start_country = EXCLUDED.start_country,
			end_city = EXCLUDED.end_city,
			end_country = EXCLUDED.end_country,
			centre_lat = EXCLUDED.centre_lat,
			centre_lon = EXCLUDED.centre_lon,
			year = EXCLUDED.year,
			private = EXCLUDED.private,
			active = EXCLUDED.active,
			passcode_hash = COALESCE(EXCLUDED.passcode_hash, maps.passcode_hash)
	`, m.Code, m.Name, m.StartCity, m.StartCountry, m.EndCity, m.EndCountry,
		m.Centre.Lat, m.Centre.Lon, year, m.Private, m.Active, m.Passcode)
	return err
}

func (r *MapRepo) GetByCode(ctx context.Context, code string) (*domain.Map, error) {
	m, err := scanMap(r.db.Pool.QueryRow(ctx, `
		SELECT `+mapColumns+`
		FROM maps WHERE code = $1
	`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *MapRepo) ListPublic(ctx context.Context) ([]domain.Map, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+mapColumns+`
		FROM maps
		WHERE active AND NOT private AND passcode_hash IS NULL
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []domain.Map
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, *m)
	}
	return maps, rows.Err()
}

// VerifyPasscode compares against the bcrypt hash stored by pgcrypto.
// A map without a passcode accepts nothing.
func (r *MapRepo) VerifyPasscode(ctx context.Context, code, passcode string) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COALESCE(passcode_hash = crypt($2, passcode_hash), false)
		FROM maps WHERE code = $1
	`, code, passcode).Scan(&ok)
	if err != nil {
		return false, notFound(err)
	}
	return ok, nil
}
