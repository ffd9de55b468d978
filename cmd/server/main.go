// Command server starts the ClosetBot analysis HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdh4601/ClosetBot/internal/adapter/cache"
	"github.com/jdh4601/ClosetBot/internal/adapter/httpserver"
	"github.com/jdh4601/ClosetBot/internal/adapter/observability"
	"github.com/jdh4601/ClosetBot/internal/adapter/queue/redpanda"
	"github.com/jdh4601/ClosetBot/internal/adapter/repo/postgres"
	"github.com/jdh4601/ClosetBot/internal/app"
	"github.com/jdh4601/ClosetBot/internal/config"
	"github.com/jdh4601/ClosetBot/internal/service/ratelimiter"
	"github.com/jdh4601/ClosetBot/internal/usecase"
)

// redisAdapter narrows *redis.Client to the readiness interface.
type redisAdapter struct{ *redis.Client }

func (r redisAdapter) Ping(ctx context.Context) app.RedisPingResult {
	return r.Client.Ping(ctx)
}

// limitsAdapter exposes the shared discovery budget to the ops endpoint.
type limitsAdapter struct{ l *ratelimiter.Limiter }

func (a limitsAdapter) LimiterStatus(ctx context.Context) ratelimiter.Status {
	return a.l.Status(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
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
	resRepo := postgres.NewResultRepo(pool)

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(pool)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started",
			slog.Int("retention_days", cfg.DataRetentionDays),
			slog.Duration("interval", cfg.CleanupInterval))
	}

	producer, err := redpanda.NewProducer(cfg.KafkaBrokers, cfg.QueueTopic)
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue producer", slog.Any("error", err))
		}
	}()

	// The ops endpoint reports the shared discovery budget and cache
	// occupancy; the server never spends tokens itself, the worker does.
	limiter := ratelimiter.New(rdb, cfg.DiscoveryHourlyCeiling, time.Hour)
	discoveryCache := cache.New(rdb, cfg.ProfileCacheTTL, cfg.MediaCacheTTL)

	jobs := usecase.NewJobs(jobRepo, resRepo, producer)

	dbCheck, redisCheck := app.BuildReadinessChecks(pool, redisAdapter{rdb})
	srv := httpserver.NewServer(cfg, jobs, limitsAdapter{limiter}, discoveryCache, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
