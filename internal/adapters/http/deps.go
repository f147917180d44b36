package http

import (
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapme/internal/adapters/postgres"
	"github.com/samirrijal/mapme/internal/adapters/valkey"
	"github.com/samirrijal/mapme/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Maps     *usecases.MapService
	Athletes *usecases.AthleteService
	Routes   *usecases.RouteService
	Auth     *usecases.AuthService
	Sessions *session.Store
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache

	// SuccessRedirect is where the browser lands after signing in.
	SuccessRedirect string
	// CORSOrigins is a comma separated allow list; empty disables CORS.
	CORSOrigins string
}
