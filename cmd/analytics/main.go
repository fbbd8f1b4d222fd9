// Command analytics consumes search events published by the searcher.
//
// It folds them into live statistics (searches, zero-result queries,
// latency percentiles, cache hit rate), records every event in the
// search_history table and periodically snapshots the statistics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/analytics/history"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/postgres"
)

const snapshotInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}, true))

	// History is optional: without postgres the service still serves live
	// statistics.
	var store *history.Store
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, search history disabled", "error", err)
	} else {
		defer db.Close()
		store = history.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create history schema", "error", err)
			os.Exit(1)
		}
		checker.Register("postgres", health.PingCheck(db.Ping, false))
		if last, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("reading latest analytics snapshot failed", "error", err)
		} else if last != nil {
			slog.Info("previous analytics snapshot",
				"total_searches", last.TotalSearches,
				"zero_results", last.ZeroResultCount,
			)
		}
	}

	aggregator := analytics.NewAggregator()
	var recorder analytics.Recorder
	var reader analytics.HistoryReader
	if store != nil {
		recorder, reader = store, store
	}
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator, recorder))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("search event consumer error", "error", err)
		}
	}()
	slog.Info("search event consumer started", "topic", cfg.Kafka.Topics.SearchEvents, "group", cfg.Kafka.ConsumerGroup)

	if store != nil {
		go snapshotLoop(ctx, aggregator, store)
	}

	analyticsHandler := analytics.NewHandler(aggregator, reader)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Timeout(cfg.Server.RequestTimeout)),
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
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

// snapshotLoop saves the live statistics every snapshotInterval and once
// more on shutdown.
func snapshotLoop(ctx context.Context, agg *analytics.Aggregator, store *history.Store) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := store.SaveSnapshot(ctx, agg.Stats()); err != nil {
				slog.Error("saving analytics snapshot failed", "error", err)
			}
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := store.SaveSnapshot(finalCtx, agg.Stats()); err != nil {
				slog.Error("saving final analytics snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
