package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/bunx"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
)

type BunNotificationRepository struct {
	db *bun.DB
}

func NewBunNotificationRepository(db *bun.DB) *BunNotificationRepository {
	return &BunNotificationRepository{db: db}
}

func (r *BunNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if _, err := r.db.NewInsert().Model(n).Exec(ctx); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *BunNotificationRepository) List(ctx context.Context, profileID string, unreadOnly bool, page pagination.Params) ([]models.Notification, int, error) {
	var items []models.Notification
	q := r.db.NewSelect().
		Model(&items).
		Where("profile_id = ?", profileID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	count, err := q.
		Order("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, count, nil
}

// MarkRead flags one of the profile's notifications as read. Notifications of
// other profiles are reported as not found.
func (r *BunNotificationRepository) MarkRead(ctx context.Context, profileID, id string) error {
	if !bunx.IsUUID(id) {
		return notFound("notification", id)
	}
	result, err := r.db.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Where("profile_id = ?", profileID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notFound("notification", id)
	}
	return nil
}

func (r *BunNotificationRepository) MarkAllRead(ctx context.Context, profileID string) (int64, error) {
	result, err := r.db.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("profile_id = ?", profileID).
		Where("is_read = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
