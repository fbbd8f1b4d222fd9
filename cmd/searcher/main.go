// Command searcher serves contract search, aggregation and export over HTTP.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/aggregate"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store/memory"
	pgstore "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store/postgres"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/tracing"
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
	tracing.Configure(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"text_match", cfg.Search.TextMatch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()

	st, db, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open contract store", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker executor.Tracker
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		collector := analytics.NewCollector(producer, 500, cfg.Analytics.FlushInterval, m)
		collector.Start(ctx)
		defer func() {
			collector.Close()
			producer.Close()
		}()
		tracker = collector
		slog.Info("search history publishing enabled", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	var broadcaster *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		broadcaster = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
		defer broadcaster.Close()
		checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}, false))
	}

	statsCache := stats.New(st, cfg.Search.StatsTTL, m)
	var coordinator *cache.Coordinator
	if broadcaster != nil {
		coordinator = cache.NewCoordinator(queryCache, broadcaster, statsCache)
		go consumeInvalidations(ctx, cfg.Kafka, coordinator)
	} else {
		coordinator = cache.NewCoordinator(queryCache, nil, statsCache)
	}

	engine := aggregate.NewEngine(st, aggregate.Config{
		TopN:         cfg.Search.TopN,
		StageTimeout: cfg.Search.StageTimeout,
	}, aggregate.NewBreaker(m), m)

	exec := executor.New(executor.Deps{
		Store:   st,
		Engine:  engine,
		Cache:   queryCache,
		Tracker: tracker,
		Metrics: m,
	}, executor.Config{
		MaxQueryLength:  cfg.Search.MaxQueryLength,
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		TopN:            cfg.Search.TopN,
		TextMatch:       query.TextMatch(cfg.Search.TextMatch),
		StageTimeout:    cfg.Search.StageTimeout,
		ExportMaxRows:   cfg.Search.ExportMaxRows,
	})

	limiter := ratelimit.New(10 * time.Minute)
	go limiter.Run(ctx)

	h := handler.New(handler.Deps{
		Search:      exec,
		Stats:       statsCache,
		Cache:       queryCache,
		Invalidator: coordinator,
		Writer:      st,
		Metrics:     m,
	})
	routes := h.Routes(handler.RouteConfig{
		Keys:           keySource(ctx, cfg, db),
		Limiter:        limiter,
		Rate:           cfg.Auth.DefaultRate,
		Burst:          cfg.Auth.DefaultBurst,
		Health:         checker,
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		SlowRequest:    cfg.Server.SlowRequestThreshold,
	})

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer, logger.WithComponent("metrics"))
		metricsServer.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      routes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// openStore returns the configured contract store. db is nil for the
// memory backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, *postgres.Client, error) {
	if cfg.Store.Backend == "memory" {
		st := memory.New()
		if cfg.Store.SeedFile == "" {
			slog.Warn("memory store has no seed file, starting empty")
			return st, nil, nil
		}
		n, err := seed(ctx, st, cfg.Store.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("memory store seeded", "file", cfg.Store.SeedFile, "contracts", n)
		return st, nil, nil
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	st := pgstore.New(db)
	if err := st.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db, nil
}

func seed(ctx context.Context, w store.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	cs, err := contracts.DecodeJSONLines(f)
	if err != nil {
		return 0, fmt.Errorf("reading seed file %s: %w", path, err)
	}
	return w.Insert(ctx, cs)
}

// keySource builds the admin key check: keys stored in postgres plus an
// optional bootstrap admin key from config. Nil disables the check.
func keySource(ctx context.Context, cfg *config.Config, db *postgres.Client) apikey.Source {
	if !cfg.Auth.Enabled {
		slog.Warn("api key checks disabled, admin routes are open")
		return nil
	}
	var chain apikey.Chain
	if cfg.Auth.BootstrapAdmin != "" {
		static := apikey.NewStatic()
		static.Add(cfg.Auth.BootstrapAdmin, apikey.KeyInfo{ID: "bootstrap", Name: "bootstrap", Role: apikey.RoleAdmin})
		chain = append(chain, static)
	}
	if db != nil {
		validator := apikey.NewValidator(db)
		if err := validator.EnsureSchema(ctx); err != nil {
			slog.Error("api key schema unavailable, only the bootstrap key is accepted", "error", err)
		} else {
			chain = append(chain, validator)
		}
	}
	return chain
}

// consumeInvalidations drops local caches when another replica reports a
// data change. Every replica needs every event, so the consumer group is
// unique per host.
func consumeInvalidations(ctx context.Context, kcfg config.KafkaConfig, coordinator *cache.Coordinator) {
	host, err := os.Hostname()
	if err != nil {
		host = fmt.Sprintf("pid-%d", os.Getpid())
	}
	kcfg.ConsumerGroup = "contracts-searcher-" + host
	consumer := kafka.NewConsumer(kcfg, kcfg.Topics.CacheInvalidate, cache.HandleInvalidation(func(ctx context.Context, reason string) {
		if _, err := coordinator.InvalidateLocal(ctx, reason); err != nil {
			slog.Warn("applying remote cache invalidation failed", "reason", reason, "error", err)
		}
	}))
	if err := consumer.Start(ctx); err != nil {
		slog.Error("cache invalidation consumer error", "error", err)
	}
}
