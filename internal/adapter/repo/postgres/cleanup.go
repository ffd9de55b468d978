package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService purges rows past their expires_at on a schedule. Media
// snapshots, hashtag aggregates, and results cascade from their parents.
type CleanupService struct {
	Pool PgxPool
}

func NewCleanupService(pool PgxPool) *CleanupService {
	return &CleanupService{Pool: pool}
}

// CleanupExpired deletes expired jobs and profiles.
func (s *CleanupService) CleanupExpired(ctx context.Context) error {
	now := time.Now().UTC()

	jobs, err := s.Pool.Exec(ctx, `DELETE FROM analysis_jobs WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return fmt.Errorf("op=cleanup.jobs: %w", err)
	}
	influencers, err := s.Pool.Exec(ctx, `DELETE FROM influencer_profiles
	WHERE expires_at < $1
	AND id NOT IN (SELECT influencer_profile_id FROM analysis_results)`, now)
	if err != nil {
		return fmt.Errorf("op=cleanup.influencers: %w", err)
	}
	brands, err := s.Pool.Exec(ctx, `DELETE FROM brand_profiles WHERE expires_at < $1`, now)
	if err != nil {
		return fmt.Errorf("op=cleanup.brands: %w", err)
	}

	slog.Info("retention cleanup completed",
		slog.Int64("deleted_jobs", jobs.RowsAffected()),
		slog.Int64("deleted_influencer_profiles", influencers.RowsAffected()),
		slog.Int64("deleted_brand_profiles", brands.RowsAffected()))
	return nil
}

// RunPeriodic runs cleanup now and then on every tick until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupExpired(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupExpired(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
