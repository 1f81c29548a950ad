package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/bunx"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
)

// BunSessionRepository implements SessionRepository using Bun ORM
type BunSessionRepository struct {
	db *bun.DB
}

// NewBunSessionRepository creates a new Bun-based session repository
func NewBunSessionRepository(db *bun.DB) *BunSessionRepository {
	return &BunSessionRepository{db: db}
}

// Create inserts a new session
func (r *BunSessionRepository) Create(ctx context.Context, session *models.Session) error {
	_, err := r.db.NewInsert().
		Model(session).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *BunSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if !bunx.IsUUID(id) {
		return nil, notFound("session", id)
	}
	session := new(models.Session)
	err := r.db.NewSelect().
		Model(session).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, wrapNoRows(err, "session", id, "get session")
	}
	return session, nil
}

// GetByTokenHash retrieves a session by its token hash.
// This is the primary lookup for the database session source.
func (r *BunSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	session := new(models.Session)
	err := r.db.NewSelect().
		Model(session).
		Where("token_hash = ?", tokenHash).
		Scan(ctx)
	if err != nil {
		return nil, wrapNoRows(err, "session", "by token", "get session by token")
	}
	return session, nil
}

// ListByProfile returns one page of a profile's sessions, newest first
func (r *BunSessionRepository) ListByProfile(ctx context.Context, profileID string, page pagination.Params) ([]models.Session, int, error) {
	var sessions []models.Session
	count, err := r.db.NewSelect().
		Model(&sessions).
		Where("profile_id = ?", profileID).
		Order("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list profile sessions: %w", err)
	}
	return sessions, count, nil
}

// UpdateLastUsed updates the last_used_at timestamp for a session
func (r *BunSessionRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("last_used_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last used: %w", err)
	}
	return nil
}

// Revoke marks a session as revoked
func (r *BunSessionRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *BunSessionRepository) RevokeForProfile(ctx context.Context, profileID string, ids []string) (int64, error) {
	if !bunx.IsUUID(profileID) {
		return 0, nil
	}
	q := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("revoked = ?", true).
		Where("profile_id = ?", profileID).
		Where("revoked = ?", false)
	if len(ids) > 0 {
		ids = uuidIDs(ids)
		if len(ids) == 0 {
			return 0, nil
		}
		q = q.Where("id IN (?)", bun.In(ids))
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoke profile sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

// DeleteExpired deletes sessions that expired before the given time.
// Run periodically by the janitor.
func (r *BunSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("expires_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
