// Command analytics runs the search analytics aggregator on its own.
//
// It consumes the events that search instances publish to the analytics
// topic, keeps running totals (query volume, zero-result queries, latency
// percentiles, most returned documents, corpus reloads), snapshots them to
// Postgres when enabled and serves them at GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port for the analytics API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("kafka must be enabled for the standalone analytics service")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var background sync.WaitGroup
	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "aggregator", agg.HandleMessage())
	background.Add(1)
	go func() {
		defer background.Done()
		if err := consumer.Run(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker()
	var snapshots analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store := aggregator.NewStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("analytics schema setup failed", "error", err)
			os.Exit(1)
		}
		snapshots = store
		checker.Register("postgres", health.PingCheck(pg.Ping))
		background.Add(1)
		go func() {
			defer background.Done()
			aggregator.RunPeriodic(ctx, store, agg, cfg.Postgres.SnapshotInterval)
		}()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		// One above the searcher's metrics port so both run on one host.
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port+1, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	analyticsH := analytics.NewHandler(agg, snapshots)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
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

	background.Wait()
	slog.Info("analytics service stopped")
}
