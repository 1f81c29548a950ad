package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/bunx"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
)

// BunProfileRepository implements ProfileRepository using Bun ORM
type BunProfileRepository struct {
	db *bun.DB
}

// NewBunProfileRepository creates a new Bun-based profile repository
func NewBunProfileRepository(db *bun.DB) *BunProfileRepository {
	return &BunProfileRepository{db: db}
}

// Create inserts a new profile. Emails are stored lower-cased.
func (r *BunProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	_, err := r.db.NewInsert().
		Model(profile).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *BunProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.getBy(ctx, "id", id)
}

// GetBySubject retrieves a profile by its identity provider subject
func (r *BunProfileRepository) GetBySubject(ctx context.Context, subject string) (*models.Profile, error) {
	return r.getBy(ctx, "subject", subject)
}

func (r *BunProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *BunProfileRepository) getBy(ctx context.Context, column, value string) (*models.Profile, error) {
	if column == "id" && !bunx.IsUUID(value) {
		return nil, notFound("profile", value)
	}
	profile := new(models.Profile)
	err := r.db.NewSelect().
		Model(profile).
		Where("? = ?", bun.Ident(column), value).
		Scan(ctx)
	if err != nil {
		return nil, wrapNoRows(err, "profile", value, "get profile by "+column)
	}
	return profile, nil
}

// Update writes the editable profile columns
func (r *BunProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	result, err := r.db.NewUpdate().
		Model(profile).
		Column("name", "avatar_url", "metadata", "disabled_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("profile", profile.ID)
	}
	return nil
}

func (r *BunProfileRepository) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.set(ctx, id, "update last login", map[string]any{"last_login_at": now})
}

// SetPasswordHash updates the stored bcrypt hash for a profile's local credentials.
func (r *BunProfileRepository) SetPasswordHash(ctx context.Context, id string, passwordHash string) error {
	return r.set(ctx, id, "set password hash", map[string]any{"password_hash": passwordHash})
}

func (r *BunProfileRepository) SetMetadata(ctx context.Context, id string, metadata models.JSONMap) error {
	if metadata == nil {
		metadata = models.JSONMap{}
	}
	return r.set(ctx, id, "set metadata", map[string]any{"metadata": metadata})
}

// LinkSubject binds an existing profile to a provider subject
func (r *BunProfileRepository) LinkSubject(ctx context.Context, id string, subject string) error {
	return r.set(ctx, id, "link subject", map[string]any{"subject": subject})
}

func (r *BunProfileRepository) set(ctx context.Context, id, op string, values map[string]any) error {
	if !bunx.IsUUID(id) {
		return notFound("profile", id)
	}
	q := r.db.NewUpdate().
		Model((*models.Profile)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	for col, val := range values {
		q = q.Set("? = ?", bun.Ident(col), val)
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notFound("profile", id)
	}
	return nil
}

// List returns one page of profiles, newest first
func (r *BunProfileRepository) List(ctx context.Context, page pagination.Params) ([]models.Profile, int, error) {
	var profiles []models.Profile
	count, err := r.db.NewSelect().
		Model(&profiles).
		Order("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, count, nil
}

// ListAll retrieves every profile, used when filtering in memory
func (r *BunProfileRepository) ListAll(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.NewSelect().
		Model(&profiles).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}
