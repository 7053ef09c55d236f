package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/source/reload"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/resilience"
)

// infra holds the optional external connections and the cache built on them.
type infra struct {
	redis      *pkgredis.Client
	db         *postgres.Client
	store      cache.Store
	queryCache *cache.QueryCache
}

// openInfra connects to Redis when configured, falling back to an in-process
// store, and to PostgreSQL when the source needs it.
func openInfra(ctx context.Context, cfg *config.Config) (*infra, error) {
	in := &infra{}

	if cfg.Redis.Addr != "" {
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache", "addr", cfg.Redis.Addr, "error", err)
		} else {
			in.redis = client
			in.store = cache.NewRedisStore(client)
			slog.Info("redis cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	if in.store == nil {
		in.store = cache.NewMemoryStore()
	}
	in.queryCache = cache.New(in.store, cfg.Redis.CacheTTL)

	if cfg.Source.Kind == source.KindPostgres {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			in.Close()
			return nil, fmt.Errorf("migrating postgres: %w", err)
		}
		in.db = db
		slog.Info("postgres source connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}
	return in, nil
}

func (in *infra) Close() {
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			slog.Error("closing redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			slog.Error("closing postgres", "error", err)
		}
	}
}

// buildProvider wraps the configured origin with retry, circuit breaking and
// the collection cache: cache -> resilience -> origin.
func buildProvider(cfg *config.Config, in *infra, m *metrics.Metrics) (source.Provider, *resilience.CircuitBreaker, error) {
	origin, err := source.New(cfg.Source, in.db)
	if err != nil {
		return nil, nil, err
	}

	breaker := resilience.NewCircuitBreaker("source-"+cfg.Source.Kind, resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Source.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Source.Breaker.ResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	m.CircuitBreakerState.WithLabelValues(breaker.Name()).Set(float64(resilience.StateClosed))

	resilient := source.NewResilientProvider(origin, breaker, resilience.RetryConfig{
		MaxAttempts:    cfg.Source.Retry.MaxAttempts,
		InitialDelay:   cfg.Source.Retry.InitialDelay,
		MaxDelay:       cfg.Source.Retry.MaxDelay,
		Multiplier:     2,
		JitterFraction: 0.1,
	}, cfg.Source.Timeout)

	if cfg.Source.CacheTTL <= 0 {
		return resilient, breaker, nil
	}
	return source.NewCachedProvider(resilient, in.store, cfg.Source.CacheTTL), breaker, nil
}

// observeReloads records metrics and analytics for every reload attempt and
// drops query cache entries for the superseded collection version.
func observeReloads(ctx context.Context, cfg *config.Config, m *metrics.Metrics, in *infra, collector *analytics.Collector) func(reload.Result) {
	return func(res reload.Result) {
		event := analytics.BrowseEvent{
			Type:      analytics.EventCollectionLoad,
			Reason:    res.Reason,
			LatencyMs: res.Duration.Milliseconds(),
			Timestamp: time.Now().UTC(),
		}
		if res.Err != nil {
			m.CollectionLoadsTotal.WithLabelValues(cfg.Source.Kind, "error").Inc()
			event.Error = res.Err.Error()
			collector.Track(event)
			return
		}

		m.CollectionLoadsTotal.WithLabelValues(cfg.Source.Kind, "ok").Inc()
		m.CollectionSize.Set(float64(res.Collection.Len()))
		event.Documents = res.Collection.Len()
		collector.Track(event)

		if prev := res.Collection.Version - 1; prev > 0 {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			n, err := in.queryCache.InvalidateVersion(flushCtx, prev)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("dropping superseded cache entries failed", "version", prev, "error", err)
				return
			}
			slog.Debug("superseded cache entries dropped", "version", prev, "keys", n)
		}
	}
}
