package main

import (
	"context"
	"embed"
	"log"
	"sort"

	"starpay/internal/config"
	"starpay/internal/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		log.Fatalf("ensure schema table failed: %v", err)
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		log.Fatalf("list migrations failed: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename=$1)`, name).Scan(&applied); err != nil {
			log.Fatalf("check migration failed (%s): %v", name, err)
		}
		if applied {
			continue
		}

		sql, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			log.Fatalf("read migration failed (%s): %v", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			log.Fatalf("apply migration failed (%s): %v", name, err)
		}
		if _, err := pool.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			log.Fatalf("mark migration failed (%s): %v", name, err)
		}
		log.Printf("applied %s", name)
	}
}
