package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// ProfileRepo persists brand and influencer profiles. The two kinds live in
// separate tables with identical columns; the repo routes by kind.
type ProfileRepo struct{ Pool PgxPool }

func NewProfileRepo(p PgxPool) *ProfileRepo { return &ProfileRepo{Pool: p} }

func profileTable(kind domain.ProfileKind) (string, error) {
	switch kind {
	case domain.ProfileBrand:
		return "brand_profiles", nil
	case domain.ProfileInfluencer:
		return "influencer_profiles", nil
	default:
		return "", fmt.Errorf("unknown profile kind %q: %w", kind, domain.ErrInvalidArgument)
	}
}

// Upsert inserts or refreshes a profile keyed by handle and returns its id.
func (r *ProfileRepo) Upsert(ctx context.Context, p domain.Profile) (string, error) {
	tracer := otel.Tracer("repo.profiles")
	ctx, span := tracer.Start(ctx, "profiles.Upsert")
	defer span.End()

	table, err := profileTable(p.Kind)
	if err != nil {
		return "", fmt.Errorf("op=profile.upsert: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s
	(id, handle, name, followers_count, follows_count, media_count, biography,
	 profile_picture_url, categories, avg_engagement_bp, last_fetched_at, expires_at)
	VALUES (gen_random_uuid(),$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	ON CONFLICT (handle) DO UPDATE SET
	 name=EXCLUDED.name, followers_count=EXCLUDED.followers_count,
	 follows_count=EXCLUDED.follows_count, media_count=EXCLUDED.media_count,
	 biography=EXCLUDED.biography, profile_picture_url=EXCLUDED.profile_picture_url,
	 categories=EXCLUDED.categories, avg_engagement_bp=EXCLUDED.avg_engagement_bp,
	 last_fetched_at=EXCLUDED.last_fetched_at, expires_at=EXCLUDED.expires_at
	RETURNING id`, table)

	var id string
	err = r.Pool.QueryRow(ctx, q, p.Handle, p.Name, p.FollowersCount, p.FollowsCount,
		p.MediaCount, p.Biography, p.ProfilePictureURL, p.Categories,
		p.AvgEngagementBP, p.LastFetchedAt.UTC(), p.ExpiresAt.UTC()).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("op=profile.upsert handle=%s: %w", p.Handle, err)
	}
	return id, nil
}

// GetByHandle loads a profile by kind and handle.
func (r *ProfileRepo) GetByHandle(ctx context.Context, kind domain.ProfileKind, handle string) (domain.Profile, error) {
	tracer := otel.Tracer("repo.profiles")
	ctx, span := tracer.Start(ctx, "profiles.GetByHandle")
	defer span.End()

	table, err := profileTable(kind)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.get: %w", err)
	}
	q := fmt.Sprintf(`SELECT id, handle, COALESCE(name,''), followers_count, follows_count,
	media_count, COALESCE(biography,''), COALESCE(profile_picture_url,''), categories,
	avg_engagement_bp, last_fetched_at, expires_at
	FROM %s WHERE handle=$1`, table)

	row := r.Pool.QueryRow(ctx, q, handle)
	p := domain.Profile{Kind: kind}
	if err := row.Scan(&p.ID, &p.Handle, &p.Name, &p.FollowersCount, &p.FollowsCount,
		&p.MediaCount, &p.Biography, &p.ProfilePictureURL, &p.Categories,
		&p.AvgEngagementBP, &p.LastFetchedAt, &p.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, fmt.Errorf("op=profile.get handle=%s: %w", handle, domain.ErrNotFound)
		}
		return domain.Profile{}, fmt.Errorf("op=profile.get: %w", err)
	}
	return p, nil
}
