package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdh4601/ClosetBot/internal/adapter/repo/postgres"
	"github.com/jdh4601/ClosetBot/internal/domain"
)

func TestProfileRepo_Upsert(t *testing.T) {
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "id-1"
		return nil
	}}}
	repo := postgres.NewProfileRepo(pool)

	id, err := repo.Upsert(context.Background(), domain.Profile{
		Kind:   domain.ProfileInfluencer,
		Handle: "style_kim",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
}

func TestProfileRepo_UpsertUnknownKind(t *testing.T) {
	repo := postgres.NewProfileRepo(&poolStub{})

	_, err := repo.Upsert(context.Background(), domain.Profile{Kind: "agency", Handle: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestProfileRepo_GetByHandleNotFound(t *testing.T) {
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewProfileRepo(pool)

	_, err := repo.GetByHandle(context.Background(), domain.ProfileBrand, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
