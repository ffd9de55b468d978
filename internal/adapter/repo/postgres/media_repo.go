package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// MediaRepo stores per-profile media snapshots and hashtag aggregates.
type MediaRepo struct{ Pool PgxPool }

func NewMediaRepo(p PgxPool) *MediaRepo { return &MediaRepo{Pool: p} }

// ReplaceSnapshots swaps a profile's stored posts for the freshly fetched
// set. Snapshots mirror the latest fetch, not an append-only history.
func (r *MediaRepo) ReplaceSnapshots(ctx context.Context, profileID string, kind domain.ProfileKind, media []domain.DiscoveredMedia) error {
	tracer := otel.Tracer("repo.media")
	ctx, span := tracer.Start(ctx, "media.ReplaceSnapshots")
	defer span.End()

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=media.replace: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM media_snapshots WHERE profile_id=$1`, profileID); err != nil {
		return fmt.Errorf("op=media.replace: delete: %w", err)
	}

	q := `INSERT INTO media_snapshots
	(id, profile_id, profile_kind, external_id, caption, like_count, comments_count,
	 media_type, permalink, posted_at, fetched_at)
	VALUES (gen_random_uuid(),$1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	now := time.Now().UTC()
	for _, m := range media {
		if _, err := tx.Exec(ctx, q, profileID, kind, m.ID, m.Caption, m.LikeCount,
			m.CommentsCount, m.MediaType, m.Permalink, m.PostedAt, now); err != nil {
			return fmt.Errorf("op=media.replace external_id=%s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=media.replace: commit: %w", err)
	}
	return nil
}

// UpsertHashtagCounts refreshes the aggregate counts for a profile's top
// hashtags, keyed (profile_id, hashtag).
func (r *MediaRepo) UpsertHashtagCounts(ctx context.Context, profileID string, counts []domain.HashtagCount) error {
	tracer := otel.Tracer("repo.media")
	ctx, span := tracer.Start(ctx, "media.UpsertHashtagCounts")
	defer span.End()

	q := `INSERT INTO hashtag_aggregates (profile_id, hashtag, count, updated_at)
	VALUES ($1,$2,$3,$4)
	ON CONFLICT (profile_id, hashtag) DO UPDATE SET count=EXCLUDED.count, updated_at=EXCLUDED.updated_at`
	now := time.Now().UTC()
	for _, c := range counts {
		if _, err := r.Pool.Exec(ctx, q, profileID, c.Hashtag, c.Count, now); err != nil {
			return fmt.Errorf("op=media.upsert_hashtags hashtag=%s: %w", c.Hashtag, err)
		}
	}
	return nil
}
