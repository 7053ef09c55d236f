// Command browser serves the blog search browser API.
//
// It loads the document collection from the configured source (HTTP, file
// or PostgreSQL), keeps per-user browse sessions in memory, and exposes
// session, stateless search, reload and cache endpoints. Redis, Kafka and the
// RPC listener are optional and enabled by configuration.
//
// Usage:
//
//	go run ./cmd/browser [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/handler"
	browserpc "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/rpc"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/source/reload"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/resilience"
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
	slog.Info("starting browser service",
		"port", cfg.Server.Port,
		"source", cfg.Source.Kind,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("browser service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("browser service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, nil)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	deps, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	provider, breaker, err := buildProvider(cfg, deps, m)
	if err != nil {
		return err
	}

	seed := cfg.Browse.ShuffleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := filter.NewEngine(seed)
	catalog := document.NewCatalog()
	defaultSort, err := filter.ParseSortMode(cfg.Browse.DefaultSort)
	if err != nil {
		return fmt.Errorf("browse.defaultSort: %w", err)
	}
	manager := session.NewManager(catalog, engine, session.ManagerConfig{
		TTL:           cfg.Browse.SessionTTL,
		MaxSessions:   cfg.Browse.MaxSessions,
		SweepInterval: cfg.Browse.SweepInterval,
		DefaultSort:   defaultSort,
		OnChange: func(live, evicted int) {
			m.ActiveSessions.Set(float64(live))
			m.SessionsEvictedTotal.Add(float64(evicted))
		},
	})

	// Analytics go to Kafka when brokers are configured; otherwise they are
	// aggregated in process and served from this instance.
	var (
		collector   *analytics.Collector
		aggregator  *analytics.Aggregator
		producers   []*kafka.Producer
		collectorCf = analytics.CollectorConfig{BatchSize: 100, FlushInterval: 2 * time.Second}
	)
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		producers = append(producers, producer)
		collector = analytics.NewCollector(producer, collectorCf)
	} else {
		aggregator = analytics.NewAggregator(cfg.Analytics.RecentWindow)
		collector = analytics.NewCollector(aggregator, collectorCf)
	}
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	collector.Start(collectorCtx)
	defer func() {
		stopCollector()
		collector.Close()
	}()

	reloader := reload.New(provider, manager, observeReloads(ctx, cfg, m, deps, collector))
	if _, err := reloader.Initial(ctx); err != nil {
		slog.Warn("initial collection load failed, serving an empty collection until a reload succeeds", "error", err)
	}

	var notifier *reload.Notifier
	var reloadConsumer *kafka.Consumer
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CollectionUpdates)
		producers = append(producers, producer)
		notifier = reload.NewNotifier(producer)

		// Every instance must see every update, so each gets its own group.
		reloadCfg := cfg.Kafka
		host, _ := os.Hostname()
		reloadCfg.ConsumerGroup = fmt.Sprintf("%s-reload-%s-%d", cfg.Kafka.ConsumerGroup, host, os.Getpid())
		reloadConsumer = kafka.NewConsumer(reloadCfg, cfg.Kafka.Topics.CollectionUpdates, reloader.HandleMessage())
	}
	defer func() {
		for _, p := range producers {
			if err := p.Close(); err != nil {
				slog.Error("closing kafka producer", "error", err)
			}
		}
	}()

	checker := health.NewChecker()
	checker.Register("collection", health.ConditionCheck(func() (bool, string) {
		col := catalog.Snapshot()
		if !catalog.Loaded() {
			return false, "no collection loaded"
		}
		return true, fmt.Sprintf("version %d, %d documents", col.Version, col.Len())
	}))
	checker.Register("source_breaker", func(ctx context.Context) health.ComponentHealth {
		state := breaker.GetState()
		if state == resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusUp, Message: state.String()}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: state.String()}
	})
	if deps.redis != nil {
		checker.Register("redis", health.PingCheck(deps.redis.Ping, true))
	}
	if deps.db != nil {
		checker.Register("postgres", health.PingCheck(deps.db.Ping, false))
	}

	h := handler.New(handler.Config{
		Sessions:       manager,
		Reloader:       reloader,
		Notifier:       notifierOrNil(notifier),
		Cache:          deps.queryCache,
		Tracker:        collector,
		Metrics:        m,
		HighlightOpen:  cfg.Browse.HighlightOpen,
		HighlightClose: cfg.Browse.HighlightClose,
		Tracing:        cfg.Tracing.Enabled,
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	if aggregator != nil {
		analytics.NewHandler(aggregator, nil).Routes(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)),
		middleware.Metrics(m),
	}
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		manager.Run(gctx)
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx, time.Minute)
			return nil
		})
	}
	if reloadConsumer != nil {
		g.Go(func() error {
			return reloadConsumer.Start(gctx)
		})
	}
	if cfg.RPC.Enabled {
		rpcServer := grpc.NewServer()
		browserpc.NewBrowseService(catalog, engine).Register(rpcServer)
		g.Go(func() error {
			return rpcServer.Serve(cfg.RPC.Addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			rpcServer.Stop()
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("browser service listening", "addr", server.Addr)
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

	return g.Wait()
}

// notifierOrNil keeps a nil *reload.Notifier from becoming a non-nil
// handler.Notifier.
func notifierOrNil(n *reload.Notifier) handler.Notifier {
	if n == nil {
		return nil
	}
	return n
}
