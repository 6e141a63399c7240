package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DBPath != "data/geopick.db" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ClaimRadiusMeters != 50 || cfg.ClaimStoreTimeout != 5*time.Second {
		t.Errorf("claim settings = %v, %v", cfg.ClaimRadiusMeters, cfg.ClaimStoreTimeout)
	}
	if cfg.RedisURL != "" || !cfg.SeedDemo {
		t.Errorf("redis = %q, seed = %v", cfg.RedisURL, cfg.SeedDemo)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLAIM_RADIUS_METERS", "25.5")
	t.Setenv("CLAIM_STORE_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SEED_DEMO", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClaimRadiusMeters != 25.5 || cfg.ClaimStoreTimeout != 750*time.Millisecond {
		t.Errorf("claim settings = %v, %v", cfg.ClaimRadiusMeters, cfg.ClaimStoreTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.SeedDemo || cfg.RedisURL == "" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"zero radius", "CLAIM_RADIUS_METERS", "0"},
		{"negative radius", "CLAIM_RADIUS_METERS", "-3"},
		{"unparsable radius", "CLAIM_RADIUS_METERS", "far"},
		{"zero timeout", "CLAIM_STORE_TIMEOUT", "0s"},
		{"unparsable level", "LOG_LEVEL", "LOUD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s accepted", tt.key, tt.value)
			}
		})
	}
}
