// Command worker consumes analysis jobs from the queue and runs the
// discovery and matching pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jdh4601/ClosetBot/internal/adapter/cache"
	"github.com/jdh4601/ClosetBot/internal/adapter/instagram"
	"github.com/jdh4601/ClosetBot/internal/adapter/observability"
	"github.com/jdh4601/ClosetBot/internal/adapter/queue/redpanda"
	"github.com/jdh4601/ClosetBot/internal/adapter/repo/postgres"
	"github.com/jdh4601/ClosetBot/internal/analysis/taxonomy"
	"github.com/jdh4601/ClosetBot/internal/app"
	"github.com/jdh4601/ClosetBot/internal/config"
	"github.com/jdh4601/ClosetBot/internal/service/ratelimiter"
	"github.com/jdh4601/ClosetBot/internal/service/retry"
	"github.com/jdh4601/ClosetBot/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	// dedicated metrics endpoint so Prometheus can scrape queue and
	// discovery instrumentation from the worker process
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis url invalid", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	retention := time.Duration(cfg.DataRetentionDays) * 24 * time.Hour
	jobRepo := postgres.NewJobRepo(pool, retention)
	profileRepo := postgres.NewProfileRepo(pool)
	resRepo := postgres.NewResultRepo(pool)
	mediaRepo := postgres.NewMediaRepo(pool)

	igClient, err := instagram.NewClient(cfg.InstagramBaseURL, cfg.InstagramAccessToken,
		cfg.InstagramBusinessAccountID, cfg.DiscoveryHTTPTimeout)
	if err != nil {
		slog.Error("discovery client init failed", slog.Any("error", err))
		os.Exit(1)
	}
	limiter := ratelimiter.New(rdb, cfg.DiscoveryHourlyCeiling, time.Hour)
	fetcher := instagram.NewService(igClient,
		cache.New(rdb, cfg.ProfileCacheTTL, cfg.MediaCacheTTL),
		limiter, cfg.RateLimiterTimeout).
		WithRetryPolicies(retry.Policy{
			MaxRetries: cfg.RetryMaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
			Multiplier: cfg.RetryExpBase,
		}, retry.ValidatePolicy())

	classifier := taxonomy.NewClassifier()
	if cfg.TaxonomyFile != "" {
		classifier, err = taxonomy.LoadClassifier(cfg.TaxonomyFile)
		if err != nil {
			slog.Error("taxonomy file load failed",
				slog.String("path", cfg.TaxonomyFile), slog.Any("error", err))
			os.Exit(1)
		}
	}
	orch := usecase.NewOrchestrator(fetcher, classifier)

	// distinct transactional ID from the server's producer so the two
	// processes do not fence each other
	producer, err := redpanda.NewProducerWithTransactionalID(cfg.KafkaBrokers, cfg.QueueTopic, "closetbot-worker-producer")
	if err != nil {
		slog.Error("queue producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue producer", slog.Any("error", err))
		}
	}()

	handler := redpanda.NewHandler(jobRepo, profileRepo, resRepo, mediaRepo, orch, cfg.JobTimeout, retention)
	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, "closetbot-workers", cfg.QueueTopic,
		producer, jobRepo, handler, cfg.JobMaxDispatches, cfg.JobRetryCooldown)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Error("failed to close consumer", slog.Any("error", err))
		}
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	if sweeper := app.NewStuckJobSweeper(jobRepo, cfg.JobTimeout+time.Minute, 0); sweeper != nil {
		go sweeper.Run(runCtx)
	}
	if cfg.DataRetentionDays > 0 {
		go postgres.NewCleanupService(pool).RunPeriodic(runCtx, cfg.CleanupInterval)
	}

	go func() {
		if err := consumer.Start(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("consumer error", slog.Any("error", err))
		}
	}()

	slog.Info("worker started, waiting for shutdown signal")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	stop()
	slog.Info("worker stopped")
}
