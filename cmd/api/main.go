package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/samirrijal/mapme/internal/adapters/google"
	"github.com/samirrijal/mapme/internal/adapters/http"
	natsadapter "github.com/samirrijal/mapme/internal/adapters/nats"
	"github.com/samirrijal/mapme/internal/adapters/postgres"
	"github.com/samirrijal/mapme/internal/adapters/strava"
	"github.com/samirrijal/mapme/internal/adapters/valkey"
	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
	"github.com/samirrijal/mapme/internal/core/usecases"
	"github.com/samirrijal/mapme/internal/pkg/config"
	"github.com/samirrijal/mapme/internal/pkg/logging"
	"github.com/samirrijal/mapme/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("mapme-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.RequireProviders(); err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", "mapme-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache
	var cache ports.CacheService
	valkeyCache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Password, cfg.Valkey.Prefix)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer valkeyCache.Close()
		cache = valkeyCache
	}

	// NATS
	var scheduler ports.RefreshScheduler
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, stats refresh disabled", "error", err)
	} else {
		defer pub.Close()
		scheduler = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Providers
	directions := google.NewClient(cfg.Google.APIKey, cfg.Google.BaseURL)
	stravaClient := strava.NewClient(strava.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  cfg.Strava.CallbackURL,
		BaseURL:      cfg.Strava.BaseURL,
	})

	// Repos
	mapRepo := postgres.NewMapRepo(db)
	athleteRepo := postgres.NewAthleteRepo(db)

	// Use cases
	mapSvc := usecases.NewMapService(mapRepo, athleteRepo, cache)
	athleteSvc := usecases.NewAthleteService(athleteRepo, scheduler, cfg.Stats.StaleAfter)
	routeSvc := usecases.NewRouteService(
		mapSvc, athleteSvc, directions, directions, cache,
		usecases.NewRouteViewStore(),
		domain.TravelMode(cfg.Google.TravelMode),
	)
	authSvc := usecases.NewAuthService(stravaClient, athleteSvc)

	// Stats updates drop cached leaderboards
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		err = sub.SubscribeStatsUpdated(ctx, func(ctx context.Context, u *domain.StatsUpdate) error {
			routeSvc.InvalidateProgress(ctx, u.Maps...)
			slog.Debug("stats updated", "athlete_id", u.AthleteID, "maps", u.Maps, "total", u.Total)
			return nil
		})
		if err != nil {
			slog.Warn("stats subscription failed", "error", err)
		}
	}

	sessions := session.New(session.Config{
		Expiration:     cfg.Auth.SessionTTL,
		CookieSecure:   cfg.Auth.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	})

	deps := &http.Dependencies{
		Maps:            mapSvc,
		Athletes:        athleteSvc,
		Routes:          routeSvc,
		Auth:            authSvc,
		Sessions:        sessions,
		NATS:            natsConn,
		DB:              db,
		Cache:           valkeyCache,
		SuccessRedirect: cfg.Auth.SuccessRedirect,
		CORSOrigins:     cfg.CORS.AllowOrigins,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "MapMe API",
	})
	app.Use(recover.New())

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	if natsConn != nil {
		natsConn.Close()
	}

	slog.Info("server stopped")
}
