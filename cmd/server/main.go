package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/Simplici0/costnorms/internal/config"
	"github.com/Simplici0/costnorms/internal/costing"
	"github.com/Simplici0/costnorms/internal/db"
	"github.com/Simplici0/costnorms/internal/migrations"
	"github.com/Simplici0/costnorms/internal/seed"
	"github.com/Simplici0/costnorms/internal/technology"
	"github.com/Simplici0/costnorms/internal/timing"
)

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := prepareDatabase(database, cfg); err != nil {
		log.Fatalf("failed to prepare database: %v", err)
	}

	store := technology.NewStore(database)
	resolver := technology.NewCachedResolver(store, cfg.ReferenceCacheTTL)
	srv := newServer(store, resolver)

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// prepareDatabase migrates in development and seeds the demo data when SEED_DEMO is set,
// whatever the environment.
func prepareDatabase(database *sql.DB, cfg config.Config) error {
	if cfg.IsDev() {
		if err := migrations.Up(database, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("run database migrations: %w", err)
		}
	}

	if cfg.SeedDemo {
		stats, err := seed.Run(database)
		if err != nil {
			return fmt.Errorf("seed demo technologies: %w", err)
		}
		log.Printf("demo seed done: %d inserts", stats.Inserts)
	}
	return nil
}

func newServer(store *technology.Store, resolver technology.Resolver) *server {
	estimator := timing.NewEstimator(resolver)
	return &server{
		store:      store,
		estimator:  estimator,
		calculator: costing.NewCalculator(resolver, estimator),
	}
}
