package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// StuckFailer fails running jobs that exceeded a processing age.
type StuckFailer interface {
	FailStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

// StuckJobSweeper fails jobs that have been running longer than the job
// wall-clock limit. Covers crashes between MarkRunning and a terminal state,
// and jobs whose queue records were lost.
type StuckJobSweeper struct {
	jobs             StuckFailer
	maxProcessingAge time.Duration
	interval         time.Duration
}

func NewStuckJobSweeper(jobs StuckFailer, maxProcessingAge, interval time.Duration) *StuckJobSweeper {
	if jobs == nil {
		return nil
	}
	if maxProcessingAge <= 0 {
		maxProcessingAge = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckJobSweeper{jobs: jobs, maxProcessingAge: maxProcessingAge, interval: interval}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil || s.jobs == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck job sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckJobSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("jobs.sweeper")
	ctx, span := tracer.Start(ctx, "StuckJobSweeper.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.Float64("jobs.max_processing_age_seconds", s.maxProcessingAge.Seconds()))

	n, err := s.jobs.FailStuck(ctx, s.maxProcessingAge)
	if err != nil {
		span.RecordError(err)
		slog.Error("stuck job sweep failed", slog.Any("error", err))
		return
	}
	span.SetAttributes(attribute.Int("jobs.marked_failed", n))
	if n > 0 {
		slog.Warn("stuck jobs failed by sweeper",
			slog.Int("count", n),
			slog.Duration("max_processing_age", s.maxProcessingAge))
	}
}
