package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdh4601/ClosetBot/internal/adapter/observability"
	"github.com/jdh4601/ClosetBot/internal/domain"
	"github.com/jdh4601/ClosetBot/pkg/textx"
)

const (
	MinInfluencers = 1
	MaxInfluencers = 5
)

// Jobs is the intake and read side of analysis jobs. The worker owns the
// write side once a job is queued.
type Jobs struct {
	jobs    domain.JobRepository
	results domain.ResultRepository
	queue   domain.Queue
}

func NewJobs(jobs domain.JobRepository, results domain.ResultRepository, queue domain.Queue) Jobs {
	return Jobs{jobs: jobs, results: results, queue: queue}
}

// Submit validates handles, persists a queued job, and enqueues the work
// item. Estimated API calls assume every profile misses the cache.
func (u Jobs) Submit(ctx context.Context, brandHandle string, influencerHandles []string) (domain.Job, error) {
	brand, err := normalizeHandle(brandHandle)
	if err != nil {
		return domain.Job{}, fmt.Errorf("brand_username: %w", err)
	}

	if len(influencerHandles) < MinInfluencers || len(influencerHandles) > MaxInfluencers {
		return domain.Job{}, fmt.Errorf("influencer_usernames: %w: between %d and %d handles required",
			domain.ErrInvalidArgument, MinInfluencers, MaxInfluencers)
	}

	seen := make(map[string]struct{}, len(influencerHandles))
	influencers := make([]string, 0, len(influencerHandles))
	for _, h := range influencerHandles {
		normalized, err := normalizeHandle(h)
		if err != nil {
			return domain.Job{}, fmt.Errorf("influencer_usernames: %w", err)
		}
		if normalized == brand {
			return domain.Job{}, fmt.Errorf("influencer_usernames: %w: influencer @%s duplicates the brand handle",
				domain.ErrInvalidArgument, normalized)
		}
		if _, dup := seen[normalized]; dup {
			return domain.Job{}, fmt.Errorf("influencer_usernames: %w: duplicate handle @%s",
				domain.ErrInvalidArgument, normalized)
		}
		seen[normalized] = struct{}{}
		influencers = append(influencers, normalized)
	}

	job := domain.Job{
		BrandHandle:       brand,
		InfluencerHandles: influencers,
		Status:            domain.JobQueued,
		APICallsEstimated: 1 + len(influencers),
		CreatedAt:         time.Now().UTC(),
	}
	id, err := u.jobs.Create(ctx, job)
	if err != nil {
		return domain.Job{}, err
	}
	job.ID = id

	if _, err := u.queue.EnqueueAnalyze(ctx, domain.AnalyzeTaskPayload{
		JobID:             id,
		BrandHandle:       brand,
		InfluencerHandles: influencers,
	}); err != nil {
		// The job row stays queued; the stuck-job sweeper will fail it if
		// nothing ever picks it up.
		slog.Error("enqueue failed after job create",
			slog.String("job_id", id), slog.Any("error", err))
		return domain.Job{}, err
	}
	observability.EnqueueJob("analyze")

	slog.Info("analysis job submitted",
		slog.String("job_id", id),
		slog.String("brand", brand),
		slog.Int("influencers", len(influencers)))
	return job, nil
}

// Get returns a job with its coarse progress percentage.
func (u Jobs) Get(ctx context.Context, id string) (domain.Job, int, error) {
	job, err := u.jobs.Get(ctx, id)
	if err != nil {
		return domain.Job{}, 0, err
	}
	return job, Progress(job.Status), nil
}

// Results returns the ranked results for a finished job. Only done jobs have
// results; anything else reports not found, with the stored error surfaced
// for failed jobs.
func (u Jobs) Results(ctx context.Context, id string) (domain.Job, []domain.AnalysisResult, error) {
	job, err := u.jobs.Get(ctx, id)
	if err != nil {
		return domain.Job{}, nil, err
	}
	switch job.Status {
	case domain.JobDone:
	case domain.JobFailed:
		return domain.Job{}, nil, fmt.Errorf("no results: job %s failed: %s: %w", id, job.ErrorMessage, domain.ErrNotFound)
	default:
		return domain.Job{}, nil, fmt.Errorf("no results: job %s is %s: %w", id, job.Status, domain.ErrNotFound)
	}

	results, err := u.results.ListByJob(ctx, id)
	if err != nil {
		return domain.Job{}, nil, err
	}
	return job, results, nil
}

// Progress maps a job status to the coarse percentage the API reports.
func Progress(s domain.JobStatus) int {
	switch s {
	case domain.JobQueued:
		return 0
	case domain.JobRunning:
		return 50
	case domain.JobDone, domain.JobFailed:
		return 100
	default:
		return 0
	}
}

func normalizeHandle(raw string) (string, error) {
	h := textx.NormalizeHandle(raw)
	if h == "" {
		return "", fmt.Errorf("%w: handle is required", domain.ErrInvalidArgument)
	}
	if !textx.ValidHandle(h) {
		return "", fmt.Errorf("%w: handle %q is not a valid username", domain.ErrInvalidArgument, h)
	}
	return h, nil
}
