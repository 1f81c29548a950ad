package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/db/dbtest"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/repository"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePruner struct {
	calls  atomic.Int32
	before time.Time
	err    error
}

func (f *fakePruner) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.calls.Add(1)
	f.before = before
	return 3, f.err
}

func TestNewJanitorRejectsBadSchedule(t *testing.T) {
	_, err := NewJanitor(&fakePruner{}, "every tuesday", quiet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid janitor schedule")

	for _, schedule := range []string{"@every 1h", "*/15 * * * *", "@daily"} {
		_, err := NewJanitor(&fakePruner{}, schedule, quiet)
		assert.NoError(t, err, schedule)
	}
}

func TestRunOnceUsesCurrentTime(t *testing.T) {
	pruner := &fakePruner{}
	j, err := NewJanitor(pruner, "@hourly", quiet)
	require.NoError(t, err)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, fixed, pruner.before)
}

func TestRunOnceWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	j, err := NewJanitor(&fakePruner{err: boom}, "@hourly", quiet)
	require.NoError(t, err)

	_, err = j.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStartRunsOnSchedule(t *testing.T) {
	pruner := &fakePruner{}
	j, err := NewJanitor(pruner, "@every 1s", quiet)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, j.Start(ctx))
	assert.Error(t, j.Start(ctx))

	assert.Eventually(t, func() bool { return pruner.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	j.Stop()
}

func TestJanitorPrunesDatabaseSessions(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	profiles := repository.NewBunProfileRepository(db)
	sessions := repository.NewBunSessionRepository(db)

	profile := &models.Profile{Email: "janitor@example.com", Name: "J"}
	require.NoError(t, profiles.Create(ctx, profile))

	now := time.Now().UTC()
	expired := &models.Session{ProfileID: profile.ID, TokenHash: "expired", ExpiresAt: now.Add(-time.Hour)}
	live := &models.Session{ProfileID: profile.ID, TokenHash: "live", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, sessions.Create(ctx, expired))
	require.NoError(t, sessions.Create(ctx, live))

	j, err := NewJanitor(sessions, "@hourly", quiet)
	require.NoError(t, err)

	n, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = sessions.GetByTokenHash(ctx, "live")
	assert.NoError(t, err)
	_, err = sessions.GetByTokenHash(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
