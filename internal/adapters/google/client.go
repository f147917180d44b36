package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/pkg/metrics"
)

var (
	// ErrNoRoute is returned when no route connects the origin and destination.
	ErrNoRoute = domain.ErrNoRoute
	// ErrNoResults is returned when a geocode lookup matches nothing.
	ErrNoResults = errors.New("no geocode results")
	// ErrRateLimited is returned when the API quota is exhausted.
	ErrRateLimited = errors.New("google maps rate limit exceeded")
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the Google Maps Directions and Geocoding web services.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

// DefaultBaseURL is the public Maps web services host.
const DefaultBaseURL = "https://maps.googleapis.com"

// NewClient creates a client against baseURL, or the public Maps API when
// baseURL is empty.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return NewClientWithHTTPDoer(apiKey, baseURL, &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a client with a custom base URL and transport.
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: doer}
}

// statusResponse carries the fields every Maps web service response shares.
type statusResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// get performs a GET against path and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues("google", operation).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamErrors.WithLabelValues("google", operation).Inc()
		}
	}()

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkStatus maps a service status to an error. notFound is returned for
// the statuses that mean the query matched nothing.
func checkStatus(s statusResponse, notFound error) error {
	switch s.Status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return notFound
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return ErrRateLimited
	default:
		if s.ErrorMessage != "" {
			return fmt.Errorf("google maps %s: %s", s.Status, s.ErrorMessage)
		}
		return fmt.Errorf("google maps status %s", s.Status)
	}
}
