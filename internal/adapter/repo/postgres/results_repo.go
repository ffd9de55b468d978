package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// ResultRepo persists scored match results, one row per (job, influencer).
type ResultRepo struct{ Pool PgxPool }

func NewResultRepo(p PgxPool) *ResultRepo { return &ResultRepo{Pool: p} }

// Create inserts or replaces a result. Upserting keeps redispatched jobs
// from duplicating rows for influencers already scored.
func (r *ResultRepo) Create(ctx context.Context, res domain.AnalysisResult) error {
	tracer := otel.Tracer("repo.results")
	ctx, span := tracer.Start(ctx, "results.Create")
	defer span.End()

	topPosts, err := json.Marshal(res.TopPosts)
	if err != nil {
		return fmt.Errorf("op=result.create: marshal top posts: %w", err)
	}
	collabs, err := json.Marshal(res.CollabSignals)
	if err != nil {
		return fmt.Errorf("op=result.create: marshal collab signals: %w", err)
	}
	common, err := json.Marshal(res.CommonHashtags)
	if err != nil {
		return fmt.Errorf("op=result.create: marshal common hashtags: %w", err)
	}

	q := `INSERT INTO analysis_results
	(job_id, influencer_profile_id, similarity_score, engagement_score, category_score,
	 final_score, grade, top_posts, collab_signals, common_hashtags, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	ON CONFLICT (job_id, influencer_profile_id) DO UPDATE SET
	 similarity_score=EXCLUDED.similarity_score, engagement_score=EXCLUDED.engagement_score,
	 category_score=EXCLUDED.category_score, final_score=EXCLUDED.final_score,
	 grade=EXCLUDED.grade, top_posts=EXCLUDED.top_posts,
	 collab_signals=EXCLUDED.collab_signals, common_hashtags=EXCLUDED.common_hashtags`
	_, err = r.Pool.Exec(ctx, q, res.JobID, res.InfluencerProfileID,
		res.SimilarityScore, res.EngagementScore, res.CategoryScore, res.FinalScore,
		res.Grade, topPosts, collabs, common, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=result.create: %w", err)
	}
	return nil
}

// ListByJob returns a job's results ranked by final score, highest first,
// with the influencer handle and reach denormalized from the profile row.
func (r *ResultRepo) ListByJob(ctx context.Context, jobID string) ([]domain.AnalysisResult, error) {
	tracer := otel.Tracer("repo.results")
	ctx, span := tracer.Start(ctx, "results.ListByJob")
	defer span.End()

	q := `SELECT r.job_id, r.influencer_profile_id, p.handle, p.followers_count, p.avg_engagement_bp,
	r.similarity_score, r.engagement_score, r.category_score, r.final_score, r.grade,
	r.top_posts, r.collab_signals, r.common_hashtags, r.created_at
	FROM analysis_results r
	JOIN influencer_profiles p ON p.id = r.influencer_profile_id
	WHERE r.job_id=$1
	ORDER BY r.final_score DESC, p.handle ASC`
	rows, err := r.Pool.Query(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("op=result.list: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		var res domain.AnalysisResult
		var engagementBP int
		var topPosts, collabs, common []byte
		if err := rows.Scan(&res.JobID, &res.InfluencerProfileID, &res.InfluencerHandle,
			&res.InfluencerFollowers, &engagementBP,
			&res.SimilarityScore, &res.EngagementScore, &res.CategoryScore, &res.FinalScore,
			&res.Grade, &topPosts, &collabs, &common, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=result.list: scan: %w", err)
		}
		res.InfluencerEngagement = float64(engagementBP) / 100.0
		if err := json.Unmarshal(topPosts, &res.TopPosts); err != nil {
			return nil, fmt.Errorf("op=result.list: decode top posts: %w", err)
		}
		if err := json.Unmarshal(collabs, &res.CollabSignals); err != nil {
			return nil, fmt.Errorf("op=result.list: decode collab signals: %w", err)
		}
		if err := json.Unmarshal(common, &res.CommonHashtags); err != nil {
			return nil, fmt.Errorf("op=result.list: decode common hashtags: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=result.list: %w", err)
	}
	return out, nil
}
