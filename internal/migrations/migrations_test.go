package migrations

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/zignal/zignalapi/internal/db/bunx"
)

func TestApplyAndRollback_SQLite(t *testing.T) {
	db, err := bunx.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.True(t, IsSQLite(db))

	group, err := Apply(ctx, db)
	require.NoError(t, err)
	assert.NotZero(t, group.ID)

	for _, table := range []string{"profiles", "sessions", "notifications", "payments", "news", "transactions", "signals", "trades", "packages", "subscriptions"} {
		_, err := db.NewSelect().Table(table).Limit(1).Exec(ctx)
		assert.NoError(t, err, "table %s should exist", table)
	}

	again, err := Apply(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, again.ID, "second run applies nothing")

	migrator := migrate.NewMigrator(db, Migrations)
	rolled, err := migrator.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, group.ID, rolled.ID)

	_, err = db.NewSelect().Table("profiles").Limit(1).Exec(ctx)
	assert.Error(t, err, "profiles dropped by rollback")
}
