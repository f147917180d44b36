package domain

import (
	"errors"
	"strconv"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoRoute is returned by directions providers when no route connects a
// map's start and end for the requested travel mode.
var ErrNoRoute = errors.New("no route found")

// ActivityRun is the only activity type totals are currently recorded for.
const ActivityRun = "run"

// Map is a shared virtual route between two cities that athletes join.
type Map struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	StartCity    string    `json:"start_city"`
	StartCountry string    `json:"start_country"`
	EndCity      string    `json:"end_city"`
	EndCountry   string    `json:"end_country"`
	Centre       GeoPoint  `json:"map_centre"`
	Year         int       `json:"year,omitempty"` // 0 = current year
	Private      bool      `json:"private"`
	Active       bool      `json:"active"`
	Passcode     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Origin is the free-text origin sent to the directions provider.
func (m *Map) Origin() string {
	return m.StartCity + ", " + m.StartCountry
}

// Destination is the free-text destination sent to the directions provider.
func (m *Map) Destination() string {
	return m.EndCity + ", " + m.EndCountry
}

// StatsYear returns the year whose totals are shown on the map.
func (m *Map) StatsYear(now time.Time) int {
	if m.Year > 0 {
		return m.Year
	}
	return now.Year()
}

// DistanceTotal is a distance aggregate for one activity type, in meters.
type DistanceTotal struct {
	Type  string  `json:"type"`
	Total float64 `json:"total"`
}

// Stats holds totals keyed by year, then by "full" or month number ("1".."12").
type Stats map[string]map[string]DistanceTotal

// Record stores a run total for the whole year and for the given month.
func (s Stats) Record(year, month int, total float64) {
	y := strconv.Itoa(year)
	if s[y] == nil {
		s[y] = make(map[string]DistanceTotal)
	}
	dt := DistanceTotal{Type: ActivityRun, Total: total}
	s[y]["full"] = dt
	s[y][strconv.Itoa(month)] = dt
}

// Athlete is a Strava user taking part in one or more maps.
type Athlete struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	GivenName      string     `json:"given_name"`
	FamilyName     string     `json:"family_name"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	RefreshToken   string     `json:"-"`
	Maps           []string   `json:"maps"`
	Stats          Stats      `json:"stats,omitempty"`
	DateCreated    time.Time  `json:"date_created"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
}

// DistanceForYear returns the athlete's run total for year in meters, or 0
// when no run total has been recorded.
func (a *Athlete) DistanceForYear(year int) float64 {
	byYear, ok := a.Stats[strconv.Itoa(year)]
	if !ok {
		return 0
	}
	full, ok := byYear["full"]
	if !ok || full.Type != ActivityRun {
		return 0
	}
	return full.Total
}

// IsStale reports whether the athlete's stats should be refreshed.
func (a *Athlete) IsStale(now time.Time, maxAge time.Duration) bool {
	return a.LastUpdated == nil || a.LastUpdated.Before(now.Add(-maxAge))
}

// HasMap reports whether the athlete has joined the map with the given code.
func (a *Athlete) HasMap(code string) bool {
	for _, m := range a.Maps {
		if m == code {
			return true
		}
	}
	return false
}

// StatsUpdate is published whenever an athlete's totals change.
type StatsUpdate struct {
	AthleteID int64     `json:"athlete_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Total     float64   `json:"total"`
	Maps      []string  `json:"maps"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshRequest asks the refresher to pull fresh totals for an athlete.
type RefreshRequest struct {
	ID          string    `json:"id"`
	AthleteID   int64     `json:"athlete_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Progress is an athlete's position along a map's route.
type Progress struct {
	Athlete     *Athlete  `json:"athlete"`
	Distance    float64   `json:"distance"`
	Position    GeoPoint  `json:"position"`
	Index       *int      `json:"index,omitempty"`
	Percent     float64   `json:"percent"`
	RemainingKm float64   `json:"remaining_km"`
	Finished    bool      `json:"finished"`
	Nearest     *Locality `json:"nearest,omitempty"`
}

// Locality is the nearest named place to a point on the route.
type Locality struct {
	Name    string `json:"name,omitempty"`
	Country string `json:"country,omitempty"`
}
