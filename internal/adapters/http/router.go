package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/mapme/internal/pkg/metrics"
)

// legacyRoutes are the pre-v1 paths still served for old frontends.
var legacyRoutes = []DeprecatedRoute{
	{Path: "/get-maps", SunsetDate: time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC), Alternative: "/v1/maps"},
	{Path: "/get-map/:code", SunsetDate: time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC), Alternative: "/v1/maps/:code"},
	{Path: "/get-map/:code/users", SunsetDate: time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC), Alternative: "/v1/maps/:code/athletes"},
	{Path: "/add-user", SunsetDate: time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC), Alternative: "/auth/strava"},
	{Path: "/callback", SunsetDate: time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC), Alternative: "/auth/strava/callback"},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	if deps.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware(legacyRoutes))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/maps", timeout.NewWithContext(ListMapsHandler(deps), 15*time.Second))
	v1.Get("/maps/:code", timeout.NewWithContext(GetMapHandler(deps), 15*time.Second))
	v1.Get("/maps/:code/athletes", timeout.NewWithContext(MapAthletesHandler(deps), 15*time.Second))
	v1.Post("/maps/:code/athletes", timeout.NewWithContext(JoinMapHandler(deps), 15*time.Second))
	v1.Get("/maps/:code/route", timeout.NewWithContext(RouteSummaryHandler(deps), 15*time.Second))
	v1.Get("/maps/:code/route/point", timeout.NewWithContext(RoutePointHandler(deps), 15*time.Second))
	v1.Get("/maps/:code/route/index", timeout.NewWithContext(RouteIndexHandler(deps), 15*time.Second))
	v1.Post("/maps/:code/route/reload", timeout.NewWithContext(ReloadRouteHandler(deps), 15*time.Second))
	v1.Get("/maps/:code/progress", timeout.NewWithContext(ProgressHandler(deps), 15*time.Second))
	v1.Get("/maps/:code/route.geojson", timeout.NewWithContext(RouteGeoJSONHandler(deps), 15*time.Second))
	v1.Get("/maps/:code/route.gpx", timeout.NewWithContext(RouteGPXHandler(deps), 15*time.Second))
	v1.Get("/me", MeHandler(deps))
	v1.Post("/logout", LogoutHandler(deps))

	// Strava sign-in
	app.Get("/auth/strava", StravaLoginHandler(deps))
	app.Get("/auth/strava/callback", StravaCallbackHandler(deps))

	// Legacy aliases
	app.Get("/get-maps", timeout.NewWithContext(LegacyListMapsHandler(deps), 15*time.Second))
	app.Get("/get-map/:code", timeout.NewWithContext(GetMapHandler(deps), 15*time.Second))
	app.Get("/get-map/:code/users", timeout.NewWithContext(MapAthletesHandler(deps), 15*time.Second))
	app.Get("/add-user", StravaLoginHandler(deps))
	app.Get("/callback", StravaCallbackHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
