package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdh4601/ClosetBot/internal/adapter/repo/postgres"
	"github.com/jdh4601/ClosetBot/internal/domain"
)

func TestMediaRepo_ReplaceSnapshots(t *testing.T) {
	pool := &poolStub{tx: &txStub{}}
	repo := postgres.NewMediaRepo(pool)
	likes := 120

	err := repo.ReplaceSnapshots(context.Background(), "prof-1", domain.ProfileInfluencer, []domain.DiscoveredMedia{
		{ID: "m1", Caption: "#minimal fit", LikeCount: &likes, CommentsCount: 4},
		{ID: "m2", Caption: "#simple", CommentsCount: 2},
	})
	require.NoError(t, err)

	// delete + one insert per post, then commit
	require.Len(t, pool.tx.execs, 3)
	assert.Contains(t, pool.tx.execs[0].sql, "DELETE FROM media_snapshots")
	assert.Contains(t, pool.tx.execs[1].sql, "INSERT INTO media_snapshots")
	assert.True(t, pool.tx.committed)

	// nil like counts survive as nil, never zero
	assert.Nil(t, pool.tx.execs[2].args[4])
	assert.Equal(t, &likes, pool.tx.execs[1].args[4])
}

func TestMediaRepo_ReplaceSnapshotsRollsBackOnError(t *testing.T) {
	pool := &poolStub{tx: &txStub{execErrAt: 2}}
	repo := postgres.NewMediaRepo(pool)

	err := repo.ReplaceSnapshots(context.Background(), "prof-1", domain.ProfileBrand, []domain.DiscoveredMedia{
		{ID: "m1"},
	})
	require.Error(t, err)
	assert.False(t, pool.tx.committed)
	assert.True(t, pool.tx.rolledBack)
}

func TestMediaRepo_UpsertHashtagCounts(t *testing.T) {
	pool := &poolStub{}
	repo := postgres.NewMediaRepo(pool)

	err := repo.UpsertHashtagCounts(context.Background(), "prof-1", []domain.HashtagCount{
		{Hashtag: "minimal", Count: 5},
		{Hashtag: "ootd", Count: 2},
	})
	require.NoError(t, err)
	require.Len(t, pool.execs, 2)
	assert.Contains(t, pool.execs[0].sql, "ON CONFLICT (profile_id, hashtag)")
	assert.Equal(t, "minimal", pool.execs[0].args[1])
	assert.Equal(t, 5, pool.execs[0].args[2])
}
