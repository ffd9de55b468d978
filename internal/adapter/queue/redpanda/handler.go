package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/jdh4601/ClosetBot/internal/adapter/observability"
	"github.com/jdh4601/ClosetBot/internal/domain"
	"github.com/jdh4601/ClosetBot/internal/usecase"
)

// Handler executes one analysis job end to end: fetch and analyze the brand,
// then each influencer in turn, persisting profiles, media snapshots, and
// scored results.
type Handler struct {
	jobs     domain.JobRepository
	profiles domain.ProfileRepository
	results  domain.ResultRepository
	media    domain.MediaRepository
	orch     *usecase.Orchestrator

	jobTimeout time.Duration
	retention  time.Duration
}

func NewHandler(
	jobs domain.JobRepository,
	profiles domain.ProfileRepository,
	results domain.ResultRepository,
	media domain.MediaRepository,
	orch *usecase.Orchestrator,
	jobTimeout, retention time.Duration,
) *Handler {
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}
	return &Handler{
		jobs:       jobs,
		profiles:   profiles,
		results:    results,
		media:      media,
		orch:       orch,
		jobTimeout: jobTimeout,
		retention:  retention,
	}
}

// HandleAnalyze processes one job. A nil return means the job reached a
// conclusive state (done or failed); an error asks for another dispatch.
func (h *Handler) HandleAnalyze(ctx context.Context, payload domain.AnalyzeTaskPayload) error {
	tracer := otel.Tracer("queue.handler")
	ctx, span := tracer.Start(ctx, "HandleAnalyze")
	defer span.End()

	ctx, counter := domain.WithAPICallCounter(ctx)
	ctx, cancel := context.WithTimeout(ctx, h.jobTimeout)
	defer cancel()

	if err := h.jobs.MarkRunning(ctx, payload.JobID); err != nil {
		return fmt.Errorf("op=handle_analyze job=%s: mark running: %w", payload.JobID, err)
	}
	observability.StartProcessingJob("analyze")

	brand, err := h.orch.AnalyzeBrand(ctx, payload.BrandHandle)
	if err != nil {
		observability.FailJob("analyze")
		// A missing or private brand is conclusive; everything else gets
		// another dispatch.
		if domain.IsTerminalAccountError(err) {
			h.fail(ctx, payload.JobID, err.Error())
			return nil
		}
		if deadlineExceeded(ctx, err) {
			h.fail(ctx, payload.JobID, fmt.Sprintf("job timed out after %s", h.jobTimeout))
			return nil
		}
		return fmt.Errorf("op=handle_analyze job=%s: analyze brand: %w", payload.JobID, err)
	}

	if _, err := h.saveBrand(ctx, brand); err != nil {
		observability.FailJob("analyze")
		return fmt.Errorf("op=handle_analyze job=%s: save brand: %w", payload.JobID, err)
	}

	analyzed := 0
	for _, handle := range payload.InfluencerHandles {
		inf, err := h.orch.AnalyzeInfluencer(ctx, handle, brand)
		if err != nil {
			if deadlineExceeded(ctx, err) {
				observability.FailJob("analyze")
				h.fail(ctx, payload.JobID, fmt.Sprintf("job timed out after %s", h.jobTimeout))
				return nil
			}
			// One bad influencer never sinks the job: terminal, starved,
			// and transient failures alike skip to the next handle.
			slog.Warn("skipping influencer",
				slog.String("job_id", payload.JobID),
				slog.String("handle", handle),
				slog.Any("error", err))
			continue
		}

		if err := h.saveInfluencer(ctx, payload.JobID, inf); err != nil {
			observability.FailJob("analyze")
			return fmt.Errorf("op=handle_analyze job=%s handle=%s: save: %w", payload.JobID, handle, err)
		}
		analyzed++
	}

	if err := h.jobs.MarkDone(ctx, payload.JobID, counter.Count()); err != nil {
		observability.FailJob("analyze")
		return fmt.Errorf("op=handle_analyze job=%s: mark done: %w", payload.JobID, err)
	}
	observability.CompleteJob("analyze")
	slog.Info("analysis job completed",
		slog.String("job_id", payload.JobID),
		slog.Int("influencers_analyzed", analyzed),
		slog.Int("influencers_requested", len(payload.InfluencerHandles)),
		slog.Int("api_calls_used", counter.Count()))
	return nil
}

func (h *Handler) saveBrand(ctx context.Context, brand usecase.BrandAnalysis) (string, error) {
	id, err := h.profiles.Upsert(ctx, h.toProfile(domain.ProfileBrand, brand.Profile, brand.Categories, 0))
	if err != nil {
		return "", err
	}
	if err := h.media.ReplaceSnapshots(ctx, id, domain.ProfileBrand, brand.Profile.Media); err != nil {
		return "", err
	}
	if err := h.media.UpsertHashtagCounts(ctx, id, brand.TopHashtags); err != nil {
		return "", err
	}
	return id, nil
}

func (h *Handler) saveInfluencer(ctx context.Context, jobID string, inf usecase.InfluencerAnalysis) error {
	profileID, err := h.profiles.Upsert(ctx, h.toProfile(
		domain.ProfileInfluencer, inf.Profile, inf.Categories, inf.Engagement.AvgEngagementRate))
	if err != nil {
		return err
	}
	if err := h.media.ReplaceSnapshots(ctx, profileID, domain.ProfileInfluencer, inf.Profile.Media); err != nil {
		return err
	}
	if err := h.media.UpsertHashtagCounts(ctx, profileID, inf.TopHashtags); err != nil {
		return err
	}
	return h.results.Create(ctx, domain.AnalysisResult{
		JobID:               jobID,
		InfluencerProfileID: profileID,
		SimilarityScore:     roundScore(inf.Score.SimilarityScore),
		EngagementScore:     roundScore(inf.Score.EngagementScore),
		CategoryScore:       roundScore(inf.Score.CategoryScore),
		FinalScore:          roundScore(inf.Score.FinalScore),
		Grade:               inf.Score.Grade,
		TopPosts:            inf.TopPosts,
		CollabSignals:       inf.CollabSignals,
		CommonHashtags:      inf.CommonHashtags,
	})
}

func (h *Handler) toProfile(kind domain.ProfileKind, p domain.DiscoveredProfile, categories []string, avgEngagementRate float64) domain.Profile {
	now := time.Now()
	return domain.Profile{
		Kind:              kind,
		Handle:            p.Handle,
		Name:              p.Name,
		FollowersCount:    p.FollowersCount,
		FollowsCount:      p.FollowsCount,
		MediaCount:        p.MediaCount,
		Biography:         p.Biography,
		ProfilePictureURL: p.ProfilePictureURL,
		Categories:        categories,
		AvgEngagementBP:   int(math.Round(avgEngagementRate * 100)),
		LastFetchedAt:     now,
		ExpiresAt:         now.Add(h.retention),
	}
}

func (h *Handler) fail(ctx context.Context, jobID, msg string) {
	// the job ctx may already be expired; the status write must still land
	ctx = context.WithoutCancel(ctx)
	if err := h.jobs.MarkFailed(ctx, jobID, msg); err != nil {
		slog.Error("failed to mark job failed",
			slog.String("job_id", jobID), slog.Any("error", err))
	}
	slog.Warn("analysis job failed",
		slog.String("job_id", jobID), slog.String("reason", msg))
}

func deadlineExceeded(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func roundScore(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
