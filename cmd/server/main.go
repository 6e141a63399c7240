package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/geopick/geopick/internal/claim"
	"github.com/geopick/geopick/internal/config"
	"github.com/geopick/geopick/internal/database"
	"github.com/geopick/geopick/internal/handler/health"
	"github.com/geopick/geopick/internal/invite"
	"github.com/geopick/geopick/internal/migrations"
	"github.com/geopick/geopick/internal/relay"
	"github.com/geopick/geopick/internal/server"
	"github.com/geopick/geopick/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// scoreLedger credits claims and serves the scoreboard.
type scoreLedger interface {
	claim.Ledger
	server.Scoreboard
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	st := store.New(db)
	invites := invite.NewGenerator(cfg.PublicURL)

	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, st, invites); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}
	if err := st.ReconcileScores(ctx); err != nil {
		return fmt.Errorf("reconciling scores: %w", err)
	}

	checks := map[string]health.Checker{"sqlite": dbChecker{db}}

	// --- Redis (optional) ---
	var ledger scoreLedger = st
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		redisLedger := store.NewRedisLedger(rdb, cfg.RedisPrefix, st)
		if err := redisLedger.Reconcile(ctx, st); err != nil {
			return fmt.Errorf("reconciling redis scores: %w", err)
		}
		ledger = redisLedger
		checks["redis"] = redisChecker{rdb}
		logger.Info("connected to redis", "prefix", cfg.RedisPrefix)
	}

	// --- Claims ---
	hub := relay.NewHub()
	engine := claim.NewEngine(logger, st, st, ledger, claim.Config{
		RadiusMeters: cfg.ClaimRadiusMeters,
		StoreTimeout: cfg.ClaimStoreTimeout,
	})
	logger.Info("claim engine ready", "radius_m", engine.RadiusMeters(), "store_timeout", cfg.ClaimStoreTimeout)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Store:    st,
		Scores:   ledger,
		Claims:   engine,
		Notifier: claim.NewNotifier(logger, hub),
		Invites:  invites,
		Events:   hub,
		SPADir:   cfg.SPADir,
		Mount: func(r chi.Router) {
			r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
			r.Mount("/ws", relay.NewHandler(logger, hub).Routes())
		},
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
