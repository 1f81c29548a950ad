package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/db/dbtest"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
)

func TestBunSessionRepository_Lifecycle(t *testing.T) {
	db := dbtest.New(t)
	profiles := NewBunProfileRepository(db)
	repo := NewBunSessionRepository(db)
	ctx := context.Background()

	owner := createProfile(t, profiles, "owner@example.com")
	other := createProfile(t, profiles, "other@example.com")

	live := &models.Session{ProfileID: owner.ID, TokenHash: "hash-live", ExpiresAt: time.Now().Add(time.Hour), UserAgent: ptr("test")}
	second := &models.Session{ProfileID: owner.ID, TokenHash: "hash-second", ExpiresAt: time.Now().Add(time.Hour)}
	expired := &models.Session{ProfileID: owner.ID, TokenHash: "hash-expired", ExpiresAt: time.Now().Add(-time.Hour)}
	foreign := &models.Session{ProfileID: other.ID, TokenHash: "hash-foreign", ExpiresAt: time.Now().Add(time.Hour)}
	for _, s := range []*models.Session{live, second, expired, foreign} {
		require.NoError(t, repo.Create(ctx, s))
		assert.NotEmpty(t, s.ID)
	}

	got, err := repo.GetByTokenHash(ctx, "hash-live")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)
	assert.True(t, got.Active(time.Now()))

	_, err = repo.GetByTokenHash(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	items, total, err := repo.ListByProfile(ctx, owner.ID, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 3)

	require.NoError(t, repo.UpdateLastUsed(ctx, live.ID))

	// ids of another profile are ignored
	n, err := repo.RevokeForProfile(ctx, owner.ID, []string{live.ID, foreign.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err := repo.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, revoked.Revoked)
	assert.False(t, revoked.Active(time.Now()))

	stillLive, err := repo.GetByID(ctx, foreign.ID)
	require.NoError(t, err)
	assert.False(t, stillLive.Revoked)

	// ids that cannot be uuids match nothing and must not widen to "all"
	n, err = repo.RevokeForProfile(ctx, owner.ID, []string{"not-a-uuid"})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.RevokeForProfile(ctx, "not-a-uuid", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err = repo.RevokeForProfile(ctx, owner.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "remaining non-revoked sessions")

	deleted, err := repo.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
