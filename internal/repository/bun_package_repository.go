package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/models"
)

// BunPackageRepository implements PackageRepository using Bun ORM
type BunPackageRepository struct {
	db *bun.DB
}

func NewBunPackageRepository(db *bun.DB) *BunPackageRepository {
	return &BunPackageRepository{db: db}
}

func (r *BunPackageRepository) Create(ctx context.Context, pkg *models.Package) error {
	if _, err := r.db.NewInsert().Model(pkg).Exec(ctx); err != nil {
		return fmt.Errorf("create package: %w", err)
	}
	return nil
}

func (r *BunPackageRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if _, err := r.db.NewInsert().Model(sub).Exec(ctx); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

type packageCount struct {
	PackageID string `bun:"package_id"`
	Count     int    `bun:"count"`
}

func (r *BunPackageRepository) ListWithSubscriberCounts(ctx context.Context) ([]PackageView, error) {
	var packages []models.Package
	err := r.db.NewSelect().
		Model(&packages).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}

	var counts []packageCount
	err = r.db.NewSelect().
		Model((*models.Subscription)(nil)).
		Column("package_id").
		ColumnExpr("COUNT(*) AS count").
		Where("status = ?", models.SubscriptionActive).
		Group("package_id").
		Scan(ctx, &counts)
	if err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}
	byPackage := make(map[string]int, len(counts))
	for _, c := range counts {
		byPackage[c.PackageID] = c.Count
	}

	views := make([]PackageView, len(packages))
	for i, p := range packages {
		views[i] = PackageView{Package: p, SubscriberCount: byPackage[p.ID]}
	}
	return views, nil
}
