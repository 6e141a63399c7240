package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/geopick.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../web/dist"`

	// RedisURL switches team scores to Redis when set. SQLite holds them otherwise.
	RedisURL    string `env:"REDIS_URL"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"geopick"`

	ClaimRadiusMeters float64       `env:"CLAIM_RADIUS_METERS" envDefault:"50"`
	ClaimStoreTimeout time.Duration `env:"CLAIM_STORE_TIMEOUT" envDefault:"5s"`

	// PublicURL is the frontend origin used in invite links and QR codes.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:5173"`
	SeedDemo  bool   `env:"SEED_DEMO" envDefault:"true"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.ClaimRadiusMeters <= 0 {
		return nil, fmt.Errorf("CLAIM_RADIUS_METERS must be positive, got %v", cfg.ClaimRadiusMeters)
	}
	if cfg.ClaimStoreTimeout <= 0 {
		return nil, fmt.Errorf("CLAIM_STORE_TIMEOUT must be positive, got %v", cfg.ClaimStoreTimeout)
	}
	return &cfg, nil
}
