package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

const (
	defaultEnv               = "development"
	defaultDBPath            = "./dev.db"
	defaultPort              = "8080"
	defaultMigrationsDir     = "migrations"
	defaultReferenceCacheTTL = 5 * time.Minute
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env               string
	DBPath            string
	Port              string
	MigrationsDir     string
	SeedDemo          bool
	ReferenceCacheTTL time.Duration
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "dev" || c.Env == defaultEnv
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	_ = loadDotEnv(".env")

	cfg := Config{
		Env:               os.Getenv("APP_ENV"),
		DBPath:            os.Getenv("DB_PATH"),
		Port:              os.Getenv("PORT"),
		MigrationsDir:     os.Getenv("MIGRATIONS_DIR"),
		ReferenceCacheTTL: defaultReferenceCacheTTL,
	}

	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = defaultMigrationsDir
	}

	if raw := os.Getenv("SEED_DEMO"); raw != "" {
		seed, err := strconv.ParseBool(raw)
		if err != nil {
			log.Printf("warning: SEED_DEMO=%q is not a boolean, ignoring", raw)
		}
		cfg.SeedDemo = seed
	}

	if raw := os.Getenv("REFERENCE_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			log.Printf("warning: REFERENCE_CACHE_TTL=%q is not a positive duration, using %s", raw, defaultReferenceCacheTTL)
		} else {
			cfg.ReferenceCacheTTL = ttl
		}
	}

	return cfg
}
