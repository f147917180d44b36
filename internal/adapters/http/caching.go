package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if the handler set one
		if len(c.Response().Header.Peek("Cache-Control")) > 0 {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case path == "/v1/me" || strings.HasPrefix(path, "/auth/"):
			ttl = "private, no-store"

		case strings.HasSuffix(path, "/route/point") || strings.HasSuffix(path, "/route/index"):
			ttl = "public, max-age=3600" // Pure functions of the route

		case strings.HasSuffix(path, "/progress") || strings.HasSuffix(path, "/athletes") ||
			strings.HasSuffix(path, "/route.geojson"):
			ttl = "public, max-age=60" // Totals change as athletes run

		case strings.HasPrefix(path, "/v1/maps/"):
			ttl = "public, max-age=600" // 10 min for single map

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300" // 5 min default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
