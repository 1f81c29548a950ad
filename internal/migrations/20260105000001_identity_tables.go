package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260105000001, down_20260105000001)
}

// up_20260105000001 creates the profile mirror and database sessions
func up_20260105000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating profiles table...")
	_, err := db.NewCreateTable().
		Model((*models.Profile)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}
	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_email ON profiles(email)`)
	if err != nil {
		return fmt.Errorf("failed to create profiles email index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating sessions table...")
	q := db.NewCreateTable().
		Model((*models.Session)(nil)).
		IfNotExists().
		ForeignKey(`(profile_id) REFERENCES profiles(id) ON DELETE CASCADE`)
	if _, err = q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_sessions_profile_id ON sessions(profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
	} {
		if _, err = db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create sessions index: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20260105000001 drops the identity tables
func down_20260105000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping sessions and profiles tables...")
	for _, model := range []any{(*models.Session)(nil), (*models.Profile)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}
