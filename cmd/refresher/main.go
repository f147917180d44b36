package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	natsadapter "github.com/samirrijal/mapme/internal/adapters/nats"
	"github.com/samirrijal/mapme/internal/adapters/postgres"
	"github.com/samirrijal/mapme/internal/adapters/strava"
	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/usecases"
	"github.com/samirrijal/mapme/internal/pkg/config"
	"github.com/samirrijal/mapme/internal/pkg/logging"
	"github.com/samirrijal/mapme/internal/workflows"
)

func main() {
	cfg, err := config.Load("mapme-refresher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireProviders(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", "mapme-refresher")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	athletes := usecases.NewAthleteService(postgres.NewAthleteRepo(db), nil, cfg.Stats.StaleAfter)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflowWithOptions(workflows.RefreshStatsWorkflow, workflow.RegisterOptions{
		Name: workflows.RefreshStatsWorkflowName,
	})
	w.RegisterActivity(&workflows.RefreshActivities{
		Athletes: athletes,
		Stats: strava.NewClient(strava.Config{
			ClientID:     cfg.Strava.ClientID,
			ClientSecret: cfg.Strava.ClientSecret,
			RedirectURL:  cfg.Strava.CallbackURL,
			BaseURL:      cfg.Strava.BaseURL,
		}),
		Events: pub,
	})

	// Refresh requests from the API start workflows
	starter := workflows.NewStarter(c, cfg.Temporal.TaskQueue)
	err = sub.SubscribeRefreshRequests(ctx, func(ctx context.Context, req *domain.RefreshRequest) error {
		return starter.ScheduleRefresh(ctx, req.AthleteID)
	})
	if err != nil {
		log.Fatalf("subscribe refresh requests: %v", err)
	}

	slog.Info("refresher worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
