// Command searcher serves relevance search over a directory of document
// records.
//
// The corpus is loaded once at startup and can be reloaded without downtime
// via POST /api/v1/corpus/reload, SIGHUP, or a message on the corpus-reload
// Kafka topic. Redis result caching, Kafka analytics and Postgres snapshots
// are optional and switched on in the config file.
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
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/scorer"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus_dir", cfg.Corpus.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	holder, err := corpus.NewHolder(cfg.Corpus.Dir,
		corpus.WithSkipInvalid(cfg.Corpus.SkipInvalid),
		corpus.WithLogger(logger.WithComponent("corpus")),
	)
	if err != nil {
		slog.Error("failed to load corpus", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(sctx)
		}()
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, generation %d", holder.Current().Len(), holder.Generation()),
		}
	})

	exec := executor.New(holder, executor.Config{
		Weights: scorer.Weights{Phrase: cfg.Search.PhraseWeight, Keyword: cfg.Search.KeywordWeight},
		Policy:  ranker.Policy{MinScore: cfg.Search.MinScore, TopN: cfg.Search.TopN},
		Window:  cfg.Search.Window,
		Workers: cfg.Search.Workers,
	})
	opts := []handler.Option{handler.WithMetrics(m)}

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, handler.WithCache(cache.New(redisClient, cfg.Redis.CacheTTL)))
			checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var background sync.WaitGroup
	agg := analytics.NewAggregator()
	var tracker analytics.Tracker = agg
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 100, 2*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "", agg.HandleMessage())
		background.Add(1)
		go func() {
			defer background.Done()
			if err := consumer.Run(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("kafka analytics enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}
	opts = append(opts, handler.WithTracker(tracker))

	var snapshots analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			store := aggregator.NewStore(pg.DB)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics snapshot schema setup failed", "error", err)
			} else {
				snapshots = store
				background.Add(1)
				go func() {
					defer background.Done()
					aggregator.RunPeriodic(ctx, store, agg, cfg.Postgres.SnapshotInterval)
				}()
			}
			checker.RegisterOptional("postgres", health.PingCheck(pg.Ping))
		}
	}

	h := handler.New(exec, holder, handler.Config{
		MaxResults: cfg.Search.MaxResults,
		Timeout:    cfg.Search.Timeout,
	}, opts...)

	if cfg.Kafka.Enabled {
		hostname, _ := os.Hostname()
		reloads := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusReload, hostname, h.ReloadMessageHandler())
		background.Add(1)
		go func() {
			defer background.Done()
			if err := reloads.Run(ctx); err != nil {
				slog.Error("corpus reload consumer error", "error", err)
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				if _, err := h.Reload(ctx, "sighup"); err != nil {
					slog.Error("SIGHUP reload failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	analyticsH := analytics.NewHandler(agg, snapshots)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.RunPruner(ctx, 5*time.Minute)
		slog.Info("rate limiting enabled", "rps", cfg.Server.RateLimit, "burst", cfg.Server.RateBurst)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins, 600)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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

	slog.Info("search service listening", "addr", server.Addr, "documents", holder.Current().Len())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	background.Wait()
	slog.Info("search service stopped")
}
