// Command analytics starts the standalone analytics aggregation service.
//
// It consumes browse events from Kafka, aggregates them in memory (searches,
// match steps, collection loads, latency percentiles, cache hit rate, top and
// zero-result queries) and exposes them at GET /api/v1/analytics. When
// PostgreSQL is reachable, periodic snapshots are persisted and served from
// GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	if !cfg.Kafka.Enabled() {
		return errors.New("kafka.brokers must be set for the analytics service")
	}

	agg := analytics.NewAggregator(cfg.Analytics.RecentWindow)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	// Snapshots are best effort; the live aggregate is served either way.
	var store *aggregator.Store
	if cfg.Analytics.SnapshotInterval > 0 {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating postgres: %w", err)
			}
			store = aggregator.NewStore(db)
			checker.Register("postgres", health.PingCheck(db.Ping, true))
		}
	}

	var history analytics.History
	if store != nil {
		history = store
	}

	m := metrics.New()
	mux := http.NewServeMux()
	analytics.NewHandler(agg, history).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)),
			middleware.Metrics(m),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
		return consumer.Start(gctx)
	})
	if store != nil {
		g.Go(func() error {
			return store.Run(gctx, agg, cfg.Analytics.SnapshotInterval)
		})
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		return nil
	})

	err := g.Wait()
	stats := agg.Stats()
	slog.Info("final aggregate", "searches", stats.TotalSearches, "steps", stats.TotalSteps)
	return err
}
