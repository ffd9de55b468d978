package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdh4601/ClosetBot/internal/adapter/repo/postgres"
	"github.com/jdh4601/ClosetBot/internal/domain"
)

func TestJobRepo_Create(t *testing.T) {
	pool := &poolStub{}
	repo := postgres.NewJobRepo(pool, 0)
	ctx := context.Background()

	id, err := repo.Create(ctx, domain.Job{
		BrandHandle:       "acmewear",
		InfluencerHandles: []string{"style_kim", "min_joon"},
		APICallsEstimated: 3,
	})
	require.NoError(t, err)
	_, parseErr := uuid.Parse(id)
	assert.NoError(t, parseErr, "generated id should be a uuid")

	require.Len(t, pool.execs, 1)
	assert.Contains(t, pool.execs[0].sql, "INSERT INTO analysis_jobs")
	assert.Equal(t, "acmewear", pool.execs[0].args[1])
	assert.Equal(t, domain.JobQueued, pool.execs[0].args[3])
}

func TestJobRepo_CreateError(t *testing.T) {
	pool := &poolStub{execErr: assert.AnError}
	repo := postgres.NewJobRepo(pool, 0)

	_, err := repo.Create(context.Background(), domain.Job{BrandHandle: "acmewear"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=job.create")
}

func TestJobRepo_GetNotFound(t *testing.T) {
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewJobRepo(pool, 0)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepo_MarkRunning(t *testing.T) {
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewJobRepo(pool, 0)

	require.NoError(t, repo.MarkRunning(context.Background(), "job-1"))
	require.Len(t, pool.execs, 1)
	assert.Contains(t, pool.execs[0].sql, "status IN ('queued','running')")
}

func TestJobRepo_MarkRunningFinishedJobConflicts(t *testing.T) {
	// a done or failed job matches no rows
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := postgres.NewJobRepo(pool, 0)

	err := repo.MarkRunning(context.Background(), "job-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestJobRepo_MarkDoneSetsRetention(t *testing.T) {
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewJobRepo(pool, 30*24*time.Hour)

	require.NoError(t, repo.MarkDone(context.Background(), "job-1", 7))
	require.Len(t, pool.execs, 1)
	assert.Equal(t, 7, pool.execs[0].args[2])

	finished := pool.execs[0].args[3].(time.Time)
	expires := pool.execs[0].args[4].(time.Time)
	assert.Equal(t, 30*24*time.Hour, expires.Sub(finished))
}

func TestJobRepo_MarkFailed(t *testing.T) {
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewJobRepo(pool, 0)

	require.NoError(t, repo.MarkFailed(context.Background(), "job-1", "brand not found"))
	require.Len(t, pool.execs, 1)
	assert.Equal(t, "brand not found", pool.execs[0].args[2])
}

func TestJobRepo_MarkDoneFinishedJobConflicts(t *testing.T) {
	// terminal states are permanent; a second finisher matches no rows
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := postgres.NewJobRepo(pool, 0)

	err := repo.MarkDone(context.Background(), "job-1", 3)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, pool.execs[0].sql, "status IN ('queued','running')")
}

func TestJobRepo_MarkFailedFinishedJobConflicts(t *testing.T) {
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := postgres.NewJobRepo(pool, 0)

	err := repo.MarkFailed(context.Background(), "job-1", "late failure")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, pool.execs[0].sql, "status IN ('queued','running')")
}

func TestJobRepo_FailStuck(t *testing.T) {
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 2")}
	repo := postgres.NewJobRepo(pool, 0)

	n, err := repo.FailStuck(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, pool.execs[0].sql, "status='running'")
}
