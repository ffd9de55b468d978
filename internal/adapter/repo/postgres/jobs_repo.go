package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// JobRepo persists analysis jobs.
type JobRepo struct {
	Pool PgxPool
	// how long finished jobs stay queryable before cleanup
	Retention time.Duration
}

func NewJobRepo(p PgxPool, retention time.Duration) *JobRepo {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &JobRepo{Pool: p, Retention: retention}
}

// Create inserts a queued job and returns its id.
func (r *JobRepo) Create(ctx context.Context, j domain.Job) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	q := `INSERT INTO analysis_jobs (id, brand_handle, influencer_handles, status, api_calls_estimated, created_at)
	VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, id, j.BrandHandle, j.InfluencerHandles, domain.JobQueued, j.APICallsEstimated, created)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	return id, nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx context.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT id, brand_handle, influencer_handles, status, api_calls_used, api_calls_estimated,
	COALESCE(error_message,''), created_at, started_at, finished_at, expires_at
	FROM analysis_jobs WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var j domain.Job
	if err := row.Scan(&j.ID, &j.BrandHandle, &j.InfluencerHandles, &j.Status, &j.APICallsUsed,
		&j.APICallsEstimated, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("op=job.get id=%s: %w", id, domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// MarkRunning moves a job to running. started_at is kept from the first
// dispatch so redeliveries do not reset the wall clock.
func (r *JobRepo) MarkRunning(ctx context.Context, id string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.MarkRunning")
	defer span.End()
	q := `UPDATE analysis_jobs SET status=$2, started_at=COALESCE(started_at,$3)
	WHERE id=$1 AND status IN ('queued','running')`
	tag, err := r.Pool.Exec(ctx, q, id, domain.JobRunning, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=job.mark_running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.mark_running id=%s: %w", id, domain.ErrConflict)
	}
	return nil
}

// MarkDone finishes a job and records the API calls it consumed.
func (r *JobRepo) MarkDone(ctx context.Context, id string, apiCallsUsed int) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.MarkDone")
	defer span.End()
	now := time.Now().UTC()
	q := `UPDATE analysis_jobs SET status=$2, api_calls_used=$3, finished_at=$4, expires_at=$5
	WHERE id=$1 AND status IN ('queued','running')`
	tag, err := r.Pool.Exec(ctx, q, id, domain.JobDone, apiCallsUsed, now, now.Add(r.Retention))
	if err != nil {
		return fmt.Errorf("op=job.mark_done: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.mark_done id=%s: %w", id, domain.ErrConflict)
	}
	return nil
}

// MarkFailed finishes a job with an error message.
func (r *JobRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.MarkFailed")
	defer span.End()
	now := time.Now().UTC()
	q := `UPDATE analysis_jobs SET status=$2, error_message=$3, finished_at=$4, expires_at=$5
	WHERE id=$1 AND status IN ('queued','running')`
	tag, err := r.Pool.Exec(ctx, q, id, domain.JobFailed, errMsg, now, now.Add(r.Retention))
	if err != nil {
		return fmt.Errorf("op=job.mark_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.mark_failed id=%s: %w", id, domain.ErrConflict)
	}
	return nil
}

// FailStuck fails running jobs whose first dispatch started more than
// olderThan ago. Returns how many jobs were failed.
func (r *JobRepo) FailStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FailStuck")
	defer span.End()
	now := time.Now().UTC()
	q := `UPDATE analysis_jobs SET status=$1, error_message=$2, finished_at=$3, expires_at=$4
	WHERE status='running' AND started_at < $5`
	tag, err := r.Pool.Exec(ctx, q, domain.JobFailed,
		fmt.Sprintf("job exceeded the %s processing limit", olderThan),
		now, now.Add(r.Retention), now.Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("op=job.fail_stuck: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
