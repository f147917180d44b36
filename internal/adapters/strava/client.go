package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/metrics"
)

// ErrUnauthorized is returned when Strava rejects the athlete's tokens. The
// athlete has to sign in again.
var ErrUnauthorized = errors.New("strava authorization revoked")

// DefaultBaseURL is the Strava web and API host.
const DefaultBaseURL = "https://www.strava.com"

// Config holds the Strava application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// HTTPClient is used for both token and API calls.
	HTTPClient *http.Client
}

// Client implements ports.AthleteAuthenticator and ports.StatsProvider.
type Client struct {
	oauth      *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Strava client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.BaseURL + "/oauth/authorize",
				TokenURL:  cfg.BaseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
	}
}

func (c *Client) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthCodeURL returns the Strava consent page URL. Public year-to-date
// totals only need the read scope.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", "read"),
		oauth2.SetAuthURLParam("approval_prompt", "auto"),
	)
}

type stravaAthlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Profile   string `json:"profile_medium"`
}

// Exchange trades an authorization code for tokens and returns the athlete
// summary Strava sends along with them.
func (c *Client) Exchange(ctx context.Context, code string) (*domain.Athlete, error) {
	start := time.Now()
	tok, err := c.oauth.Exchange(c.ctx(ctx), code)
	metrics.UpstreamRequestDuration.WithLabelValues("strava", "exchange").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("strava", "exchange").Inc()
		return nil, tokenError(err)
	}

	raw, err := json.Marshal(tok.Extra("athlete"))
	if err != nil {
		return nil, fmt.Errorf("encode athlete: %w", err)
	}
	var sa stravaAthlete
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("decode athlete: %w", err)
	}
	if sa.ID == 0 {
		return nil, errors.New("token response has no athlete")
	}

	return &domain.Athlete{
		ID:             sa.ID,
		Username:       sa.Username,
		GivenName:      sa.FirstName,
		FamilyName:     sa.LastName,
		ProfilePicture: sa.Profile,
		RefreshToken:   tok.RefreshToken,
		Maps:           []string{},
	}, nil
}

type athleteStats struct {
	YTDRunTotals struct {
		Count    int     `json:"count"`
		Distance float64 `json:"distance"`
	} `json:"ytd_run_totals"`
}

// YearToDateRunDistance refreshes the athlete's access token and reads the
// year-to-date run distance in meters. The returned refresh token replaces
// the one passed in.
func (c *Client) YearToDateRunDistance(ctx context.Context, athleteID int64, refreshToken string) (_ float64, _ string, err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues("strava", "stats").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamErrors.WithLabelValues("strava", "stats").Inc()
		}
	}()

	if refreshToken == "" {
		return 0, "", ErrUnauthorized
	}

	octx := c.ctx(ctx)
	tok, err := c.oauth.TokenSource(octx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return 0, "", tokenError(err)
	}

	url := fmt.Sprintf("%s/api/v3/athletes/%d/stats", c.baseURL, athleteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := oauth2.NewClient(octx, oauth2.StaticTokenSource(tok)).Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, "", ErrUnauthorized
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, "", fmt.Errorf("strava API error %d: %s", resp.StatusCode, string(body))
	}

	var stats athleteStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, "", fmt.Errorf("decode stats: %w", err)
	}

	next := tok.RefreshToken
	if next == "" {
		next = refreshToken
	}
	return stats.YTDRunTotals.Distance, next, nil
}

func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil &&
		(re.Response.StatusCode == http.StatusBadRequest || re.Response.StatusCode == http.StatusUnauthorized) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, re.Error())
	}
	return fmt.Errorf("token request: %w", err)
}
