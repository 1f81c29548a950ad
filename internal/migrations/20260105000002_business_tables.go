package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260105000002, down_20260105000002)
}

type tableSpec struct {
	name    string
	model   any
	fk      string
	indexes []string
}

var businessTables = []tableSpec{
	{
		name:    "notifications",
		model:   (*models.Notification)(nil),
		fk:      `(profile_id) REFERENCES profiles(id) ON DELETE CASCADE`,
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_notifications_profile ON notifications(profile_id, is_read)`},
	},
	{
		name:  "payments",
		model: (*models.Payment)(nil),
		indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_provider_order ON payments(provider_order_id)`,
		},
	},
	{
		name:    "news",
		model:   (*models.News)(nil),
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_news_published_at ON news(published_at)`},
	},
	{
		name:    "transactions",
		model:   (*models.Transaction)(nil),
		fk:      `(profile_id) REFERENCES profiles(id) ON DELETE CASCADE`,
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_transactions_profile_type ON transactions(profile_id, type)`},
	},
	{
		name:    "signals",
		model:   (*models.Signal)(nil),
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_signals_pair ON signals(pair)`},
	},
	{
		name:    "trades",
		model:   (*models.Trade)(nil),
		fk:      `(profile_id) REFERENCES profiles(id) ON DELETE CASCADE`,
		indexes: []string{`CREATE INDEX IF NOT EXISTS idx_trades_profile ON trades(profile_id)`},
	},
}

// up_20260105000002 creates the member and admin data tables
func up_20260105000002(ctx context.Context, db *bun.DB) error {
	for _, t := range businessTables {
		fmt.Printf(" [up] creating %s table...", t.name)
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		if t.fk != "" {
			q = q.ForeignKey(t.fk)
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
			ALTER TABLE payments
			ADD CONSTRAINT payments_status_check CHECK (status IN ('pending', 'completed', 'failed'))
		`)
		if err != nil {
			return fmt.Errorf("failed to add payments status check: %w", err)
		}
	}

	return nil
}

// down_20260105000002 drops the business tables in reverse order
func down_20260105000002(ctx context.Context, db *bun.DB) error {
	for i := len(businessTables) - 1; i >= 0; i-- {
		t := businessTables[i]
		fmt.Printf(" [down] dropping %s table...", t.name)
		if _, err := db.NewDropTable().Model(t.model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", t.name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
