package strava_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/mapme/internal/adapters/strava"
)

func newStravaServer(t *testing.T, statsStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		resp := map[string]interface{}{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"refresh_token": "refresh-2",
			"expires_in":    21600,
		}
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			resp["athlete"] = map[string]interface{}{
				"id":        int64(1234567),
				"username":  "runner",
				"firstname": "Sam",
				"lastname":  "Rijal",
				"profile":        "https://example.com/large.jpg",
				"profile_medium": "https://example.com/medium.jpg",
			}
		case "refresh_token":
			if r.PostForm.Get("refresh_token") == "revoked" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/v3/athletes/1234567/stats", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		if statsStatus != http.StatusOK {
			w.WriteHeader(statsStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ytd_run_totals": {"count": 42, "distance": 321456.7}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *strava.Client {
	return strava.NewClient(strava.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://mapme.example.com/v1/auth/strava/callback",
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
	})
}

func TestAuthCodeURL(t *testing.T) {
	c := strava.NewClient(strava.Config{ClientID: "client-id", RedirectURL: "https://mapme.example.com/cb"})

	u, err := url.Parse(c.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "www.strava.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "read", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestExchange(t *testing.T) {
	srv := newStravaServer(t, http.StatusOK)
	c := newClient(srv)

	a, err := c.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), a.ID)
	assert.Equal(t, "runner", a.Username)
	assert.Equal(t, "Sam", a.GivenName)
	assert.Equal(t, "Rijal", a.FamilyName)
	assert.Equal(t, "https://example.com/medium.jpg", a.ProfilePicture)
	assert.Equal(t, "refresh-2", a.RefreshToken)
}

func TestExchange_BadCode(t *testing.T) {
	srv := newStravaServer(t, http.StatusOK)
	c := newClient(srv)

	_, err := c.Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, strava.ErrUnauthorized)
}

func TestYearToDateRunDistance(t *testing.T) {
	srv := newStravaServer(t, http.StatusOK)
	c := newClient(srv)

	total, next, err := c.YearToDateRunDistance(context.Background(), 1234567, "refresh-1")
	require.NoError(t, err)
	assert.InDelta(t, 321456.7, total, 1e-9)
	assert.Equal(t, "refresh-2", next)
}

func TestYearToDateRunDistance_Unauthorized(t *testing.T) {
	tests := []struct {
		name         string
		statsStatus  int
		refreshToken string
	}{
		{name: "revoked refresh token", statsStatus: http.StatusOK, refreshToken: "revoked"},
		{name: "stats rejected", statsStatus: http.StatusUnauthorized, refreshToken: "refresh-1"},
		{name: "no refresh token", statsStatus: http.StatusOK, refreshToken: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newStravaServer(t, tt.statsStatus)
			c := newClient(srv)

			_, _, err := c.YearToDateRunDistance(context.Background(), 1234567, tt.refreshToken)
			assert.ErrorIs(t, err, strava.ErrUnauthorized)
		})
	}
}

func TestYearToDateRunDistance_ServerError(t *testing.T) {
	srv := newStravaServer(t, http.StatusInternalServerError)
	c := newClient(srv)

	_, _, err := c.YearToDateRunDistance(context.Background(), 1234567, "refresh-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, strava.ErrUnauthorized)
}
