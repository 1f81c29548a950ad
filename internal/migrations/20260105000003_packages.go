package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260105000003, down_20260105000003)
}

var packageTables = []tableSpec{
	{
		name:    "packages",
		model:   (*models.Package)(nil),
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_packages_created_at ON packages(created_at)`},
	},
	{
		name:  "subscriptions",
		model: (*models.Subscription)(nil),
		fk:    `(profile_id) REFERENCES profiles(id) ON DELETE CASCADE`,
		indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_package_status ON subscriptions(package_id, status)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_profile ON subscriptions(profile_id)`,
		},
	},
}

// up_20260105000003 creates the subscription package tables
func up_20260105000003(ctx context.Context, db *bun.DB) error {
	for _, t := range packageTables {
		fmt.Printf(" [up] creating %s table...", t.name)
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		if t.fk != "" {
			q = q.ForeignKey(t.fk)
		}
		if t.name == "subscriptions" {
			q = q.ForeignKey(`(package_id) REFERENCES packages(id) ON DELETE CASCADE`)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
		for _, stmt := range t.indexes {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create %s index: %w", t.name, err)
			}
		}
		fmt.Println(" OK")
	}

	if IsPostgreSQL(db) {
		_, err := db.ExecContext(ctx, `
			ALTER TABLE subscriptions
			ADD CONSTRAINT subscriptions_status_check CHECK (status IN ('active', 'expired', 'cancelled'))
		`)
		if err != nil {
			return fmt.Errorf("failed to add subscriptions status check: %w", err)
		}
	}

	return nil
}

// down_20260105000003 drops the package tables in reverse order
func down_20260105000003(ctx context.Context, db *bun.DB) error {
	for i := len(packageTables) - 1; i >= 0; i-- {
		t := packageTables[i]
		fmt.Printf(" [down] dropping %s table...", t.name)
		if _, err := db.NewDropTable().Model(t.model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", t.name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
