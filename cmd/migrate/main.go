package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/mapme/internal/pkg/config"
)

// migrations are applied in order by up and reverted in reverse by down.
var migrations = []string{
	"migrations/001_init_extensions.sql",
	"migrations/002_maps_athletes.sql",
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("mapme-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		run(ctx, pool, migrations)
	case "down":
		var downs []string
		for i := len(migrations) - 1; i >= 0; i-- {
			down := strings.TrimSuffix(migrations[i], ".sql") + ".down.sql"
			if _, err := os.Stat(down); err == nil {
				downs = append(downs, down)
			}
		}
		run(ctx, pool, downs)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func run(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		_, err = pool.Exec(ctx, string(data))
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Printf("%d migrations applied", len(files))
}
