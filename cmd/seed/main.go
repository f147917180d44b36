package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/mapme/internal/adapters/google"
	"github.com/samirrijal/mapme/internal/adapters/postgres"
	"github.com/samirrijal/mapme/internal/adapters/valkey"
	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
	"github.com/samirrijal/mapme/internal/core/usecases"
	"github.com/samirrijal/mapme/internal/pkg/config"
	"github.com/samirrijal/mapme/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source string     `json:"source"`
	Maps   []MapEntry `json:"maps"`
}

type MapEntry struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	StartCity    string          `json:"start_city"`
	StartCountry string          `json:"start_country"`
	EndCity      string          `json:"end_city"`
	EndCountry   string          `json:"end_country"`
	Centre       domain.GeoPoint `json:"map_centre"`
	Year         int             `json:"year,omitempty"`
	Private      bool            `json:"private"`
	Inactive     bool            `json:"inactive,omitempty"`
	Passcode     string          `json:"passcode,omitempty"`
}

func (e MapEntry) toDomain() *domain.Map {
	return &domain.Map{
		Code:         e.Code,
		Name:         e.Name,
		StartCity:    e.StartCity,
		StartCountry: e.StartCountry,
		EndCity:      e.EndCity,
		EndCountry:   e.EndCountry,
		Centre:       e.Centre,
		Year:         e.Year,
		Private:      e.Private,
		Active:       !e.Inactive,
		Passcode:     e.Passcode,
	}
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	warm := flag.Bool("warm", false, "build and cache each map's route after saving it")
	only := flag.String("only", "", "comma separated map codes to seed (default all)")
	flag.Parse()

	cfg, err := config.Load("mapme-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", "service", "mapme-seed")

	manifestPath := "maps.json"
	if flag.NArg() > 0 {
		manifestPath = flag.Arg(0)
	}
	manifest, err := readManifest(manifestPath)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Password, cfg.Valkey.Prefix); err != nil {
		slog.Warn("valkey unavailable, routes will not be cached", "error", err)
	} else {
		defer c.Close()
		cache = c
	}

	athleteRepo := postgres.NewAthleteRepo(db)
	maps := usecases.NewMapService(postgres.NewMapRepo(db), athleteRepo, cache)
	athletes := usecases.NewAthleteService(athleteRepo, nil, cfg.Stats.StaleAfter)

	var routes *usecases.RouteService
	if *warm {
		if cfg.Google.APIKey == "" {
			log.Fatal("-warm needs google.api_key")
		}
		routes = usecases.NewRouteService(maps, athletes,
			google.NewClient(cfg.Google.APIKey, cfg.Google.BaseURL), nil, cache,
			usecases.NewRouteViewStore(), domain.TravelMode(cfg.Google.TravelMode))
	}

	filter := map[string]bool{}
	for _, code := range strings.Split(*only, ",") {
		if code = strings.TrimSpace(code); code != "" {
			filter[code] = true
		}
	}

	slog.Info("seeding maps", "count", len(manifest.Maps), "source", manifest.Source, "warm", *warm)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4) // max 4 concurrent directions requests
	for _, entry := range manifest.Maps {
		if len(filter) > 0 && !filter[entry.Code] {
			continue
		}
		entry := entry
		g.Go(func() error {
			return seedMap(gctx, maps, routes, entry)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("seed: %v", err)
	}
	slog.Info("seeding complete")
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, e := range m.Maps {
		if e.Code == "" || e.StartCity == "" || e.EndCity == "" {
			return nil, fmt.Errorf("map %d: code, start_city and end_city are required", i)
		}
	}
	return &m, nil
}

func seedMap(ctx context.Context, maps *usecases.MapService, routes *usecases.RouteService, e MapEntry) error {
	if err := maps.Save(ctx, e.toDomain()); err != nil {
		return fmt.Errorf("[%s] save: %w", e.Code, err)
	}
	slog.Info("map saved", "map", e.Code, "private", e.Private || e.Passcode != "")

	if routes == nil {
		return nil
	}
	v, err := routes.Reload(ctx, e.Code)
	if err != nil {
		// A map whose route cannot be built yet is still usable once it can.
		slog.Error("route build failed", "map", e.Code, "error", err)
		return nil
	}
	slog.Info("route cached",
		"map", e.Code,
		"vertices", v.Path.Len(),
		"length_km", v.Path.TotalLength()/1000,
	)
	return nil
}
