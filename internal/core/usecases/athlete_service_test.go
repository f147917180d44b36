package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/usecases"
)

// --- Mock AthleteRepository ---

type mockAthleteRepo struct {
	getByIDFn     func(ctx context.Context, id int64) (*domain.Athlete, error)
	insertFn      func(ctx context.Context, a *domain.Athlete) error
	listByMapFn   func(ctx context.Context, code string, year int) ([]domain.Athlete, error)
	updateStatsFn func(ctx context.Context, id int64, year, month int, total float64, refreshToken string) error
	addMapFn      func(ctx context.Context, id int64, code string) error
	tokenFn       func(ctx context.Context, id int64, refreshToken string) error
}

func (m *mockAthleteRepo) UpdateRefreshToken(ctx context.Context, id int64, refreshToken string) error {
	if m.tokenFn != nil {
		return m.tokenFn(ctx, id, refreshToken)
	}
	return nil
}

func (m *mockAthleteRepo) Insert(ctx context.Context, a *domain.Athlete) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, a)
	}
	return nil
}

func (m *mockAthleteRepo) GetByID(ctx context.Context, id int64) (*domain.Athlete, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockAthleteRepo) ListByMap(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
	if m.listByMapFn != nil {
		return m.listByMapFn(ctx, code, year)
	}
	return nil, nil
}

func (m *mockAthleteRepo) UpdateStats(ctx context.Context, id int64, year, month int, total float64, refreshToken string) error {
	if m.updateStatsFn != nil {
		return m.updateStatsFn(ctx, id, year, month, total, refreshToken)
	}
	return nil
}

func (m *mockAthleteRepo) AddMap(ctx context.Context, id int64, code string) error {
	if m.addMapFn != nil {
		return m.addMapFn(ctx, id, code)
	}
	return nil
}

// --- Mock RefreshScheduler ---

type mockScheduler struct {
	scheduled []int64
	err       error
}

func (m *mockScheduler) ScheduleRefresh(ctx context.Context, athleteID int64) error {
	if m.err != nil {
		return m.err
	}
	m.scheduled = append(m.scheduled, athleteID)
	return nil
}

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func athleteWithTotal(id int64, year int, total float64) domain.Athlete {
	stats := domain.Stats{}
	stats.Record(year, 1, total)
	updated := fixedNow
	return domain.Athlete{ID: id, Username: "athlete", Stats: stats, LastUpdated: &updated}
}

// --- Tests ---

func TestAthleteService_Login_NewAthlete(t *testing.T) {
	var inserted *domain.Athlete
	repo := &mockAthleteRepo{
		insertFn: func(ctx context.Context, a *domain.Athlete) error {
			inserted = a
			return nil
		},
	}
	sched := &mockScheduler{}
	svc := usecases.NewAthleteService(repo, sched, time.Minute)
	svc.SetClock(func() time.Time { return fixedNow })

	a, err := svc.Login(context.Background(), &domain.Athlete{ID: 7, Username: "sam"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted == nil || inserted.ID != 7 {
		t.Fatalf("expected athlete 7 to be inserted, got %+v", inserted)
	}
	if !a.DateCreated.Equal(fixedNow) {
		t.Errorf("expected date_created %v, got %v", fixedNow, a.DateCreated)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0] != 7 {
		t.Errorf("expected a refresh for athlete 7, got %v", sched.scheduled)
	}
}

func TestAthleteService_Login_ExistingAthlete(t *testing.T) {
	inserts := 0
	repo := &mockAthleteRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Athlete, error) {
			return &domain.Athlete{ID: id, Username: "stored"}, nil
		},
		insertFn: func(ctx context.Context, a *domain.Athlete) error { inserts++; return nil },
	}
	sched := &mockScheduler{}
	svc := usecases.NewAthleteService(repo, sched, time.Minute)

	a, err := svc.Login(context.Background(), &domain.Athlete{ID: 7, Username: "fresh"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Username != "stored" {
		t.Errorf("expected stored athlete, got %s", a.Username)
	}
	if inserts != 0 || len(sched.scheduled) != 0 {
		t.Errorf("expected no insert and no refresh, got %d inserts, %v refreshes", inserts, sched.scheduled)
	}
}

func TestAthleteService_Login_ExistingAthleteStoresNewToken(t *testing.T) {
	var stored []string
	repo := &mockAthleteRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Athlete, error) {
			return &domain.Athlete{ID: id, Username: "stored", RefreshToken: "revoked"}, nil
		},
		tokenFn: func(ctx context.Context, id int64, refreshToken string) error {
			stored = append(stored, refreshToken)
			return nil
		},
	}
	sched := &mockScheduler{}
	svc := usecases.NewAthleteService(repo, sched, time.Minute)

	a, err := svc.Login(context.Background(), &domain.Athlete{ID: 7, RefreshToken: "fresh"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RefreshToken != "fresh" {
		t.Errorf("expected returned token fresh, got %q", a.RefreshToken)
	}
	if len(stored) != 1 || stored[0] != "fresh" {
		t.Errorf("expected token fresh to be stored once, got %v", stored)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0] != 7 {
		t.Errorf("expected a refresh for athlete 7, got %v", sched.scheduled)
	}

	stored, sched.scheduled = nil, nil
	repo.getByIDFn = func(ctx context.Context, id int64) (*domain.Athlete, error) {
		return &domain.Athlete{ID: id, RefreshToken: "fresh"}, nil
	}
	if _, err := svc.Login(context.Background(), &domain.Athlete{ID: 7, RefreshToken: "fresh"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 0 || len(sched.scheduled) != 0 {
		t.Errorf("expected no write for an unchanged token, got %v, %v", stored, sched.scheduled)
	}
}

func TestAthleteService_Login_RepoError(t *testing.T) {
	repo := &mockAthleteRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Athlete, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := usecases.NewAthleteService(repo, nil, time.Minute)

	if _, err := svc.Login(context.Background(), &domain.Athlete{ID: 1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAthleteService_ListByMap_RefreshesStale(t *testing.T) {
	fresh := fixedNow.Add(-30 * time.Second)
	stale := fixedNow.Add(-2 * time.Minute)
	repo := &mockAthleteRepo{
		listByMapFn: func(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
			if year != 2024 {
				t.Errorf("expected year 2024, got %d", year)
			}
			return []domain.Athlete{
				{ID: 1},
				{ID: 2, LastUpdated: &fresh},
				{ID: 3, LastUpdated: &stale},
			}, nil
		},
	}
	sched := &mockScheduler{}
	svc := usecases.NewAthleteService(repo, sched, time.Minute)
	svc.SetClock(func() time.Time { return fixedNow })

	athletes, err := svc.ListByMap(context.Background(), "lejog", 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(athletes) != 3 {
		t.Fatalf("expected 3 athletes, got %d", len(athletes))
	}
	if len(sched.scheduled) != 2 || sched.scheduled[0] != 1 || sched.scheduled[1] != 3 {
		t.Errorf("expected refreshes for athletes 1 and 3, got %v", sched.scheduled)
	}
}

func TestAthleteService_ListByMap_SchedulerErrorIgnored(t *testing.T) {
	repo := &mockAthleteRepo{
		listByMapFn: func(ctx context.Context, code string, year int) ([]domain.Athlete, error) {
			return []domain.Athlete{{ID: 1}}, nil
		},
	}
	svc := usecases.NewAthleteService(repo, &mockScheduler{err: errors.New("nats down")}, time.Minute)

	athletes, err := svc.ListByMap(context.Background(), "lejog", 2024)
	if err != nil {
		t.Fatalf("expected scheduler failure to be ignored, got %v", err)
	}
	if len(athletes) != 1 {
		t.Fatalf("expected 1 athlete, got %d", len(athletes))
	}
}

func TestAthleteService_RecordTotal(t *testing.T) {
	var gotYear, gotMonth int
	var gotTotal float64
	var gotToken string
	repo := &mockAthleteRepo{
		updateStatsFn: func(ctx context.Context, id int64, year, month int, total float64, refreshToken string) error {
			gotYear, gotMonth, gotTotal, gotToken = year, month, total, refreshToken
			return nil
		},
	}
	svc := usecases.NewAthleteService(repo, nil, time.Minute)
	svc.SetClock(func() time.Time { return fixedNow })

	update, err := svc.RecordTotal(context.Background(), &domain.Athlete{ID: 9, Maps: []string{"lejog"}}, 123456.7, "rt-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotYear != 2024 || gotMonth != 3 {
		t.Errorf("expected 2024/3, got %d/%d", gotYear, gotMonth)
	}
	if gotTotal != 123456.7 || gotToken != "rt-2" {
		t.Errorf("unexpected stored values: %v %q", gotTotal, gotToken)
	}
	if update.AthleteID != 9 || len(update.Maps) != 1 || update.Maps[0] != "lejog" {
		t.Errorf("unexpected update: %+v", update)
	}
}
