package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
)

// BunNewsRepository implements NewsRepository using Bun ORM
type BunNewsRepository struct {
	db *bun.DB
}

func NewBunNewsRepository(db *bun.DB) *BunNewsRepository {
	return &BunNewsRepository{db: db}
}

func (r *BunNewsRepository) Create(ctx context.Context, n *models.News) error {
	if _, err := r.db.NewInsert().Model(n).Exec(ctx); err != nil {
		return fmt.Errorf("create news: %w", err)
	}
	return nil
}

// List searches title, summary and source case-insensitively
func (r *BunNewsRepository) List(ctx context.Context, search string, page pagination.Params) ([]models.News, int, error) {
	var items []models.News
	q := r.db.NewSelect().Model(&items)
	if strings.TrimSpace(search) != "" {
		q = whereAnyLike(q, search, "title", "summary", "source")
	}
	count, err := q.
		Order("published_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}
	return items, count, nil
}

// BunSignalRepository implements SignalRepository using Bun ORM
type BunSignalRepository struct {
	db *bun.DB
}

func NewBunSignalRepository(db *bun.DB) *BunSignalRepository {
	return &BunSignalRepository{db: db}
}

func (r *BunSignalRepository) Create(ctx context.Context, s *models.Signal) error {
	s.Pair = strings.ToUpper(s.Pair)
	s.Action = strings.ToUpper(s.Action)
	if _, err := r.db.NewInsert().Model(s).Exec(ctx); err != nil {
		return fmt.Errorf("create signal: %w", err)
	}
	return nil
}

func (r *BunSignalRepository) List(ctx context.Context, filter SignalFilter, page pagination.Params) ([]models.Signal, int, error) {
	var items []models.Signal
	q := r.db.NewSelect().Model(&items)
	if filter.Pair != "" {
		q = q.Where("pair = ?", strings.ToUpper(filter.Pair))
	}
	if filter.Action != "" {
		q = q.Where("action = ?", strings.ToUpper(filter.Action))
	}
	if strings.TrimSpace(filter.Search) != "" {
		q = whereAnyLike(q, filter.Search, "pair", "status")
	}
	count, err := q.
		Order("issued_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list signals: %w", err)
	}
	return items, count, nil
}

// BunTradeRepository implements TradeRepository using Bun ORM
type BunTradeRepository struct {
	db *bun.DB
}

func NewBunTradeRepository(db *bun.DB) *BunTradeRepository {
	return &BunTradeRepository{db: db}
}

func (r *BunTradeRepository) Create(ctx context.Context, t *models.Trade) error {
	t.Pair = strings.ToUpper(t.Pair)
	t.Side = strings.ToUpper(t.Side)
	if _, err := r.db.NewInsert().Model(t).Exec(ctx); err != nil {
		return fmt.Errorf("create trade: %w", err)
	}
	return nil
}

func (r *BunTradeRepository) List(ctx context.Context, filter TradeFilter, page pagination.Params) ([]models.Trade, int, error) {
	var items []models.Trade
	q := r.db.NewSelect().
		Model(&items).
		Where("profile_id = ?", filter.ProfileID)
	if filter.Pair != "" {
		q = q.Where("pair = ?", strings.ToUpper(filter.Pair))
	}
	if filter.Side != "" {
		q = q.Where("side = ?", strings.ToUpper(filter.Side))
	}
	if strings.TrimSpace(filter.Search) != "" {
		q = whereAnyLike(q, filter.Search, "pair")
	}
	count, err := q.
		Order("time DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list trades: %w", err)
	}
	return items, count, nil
}

// BunTransactionRepository implements TransactionRepository using Bun ORM
type BunTransactionRepository struct {
	db *bun.DB
}

func NewBunTransactionRepository(db *bun.DB) *BunTransactionRepository {
	return &BunTransactionRepository{db: db}
}

func (r *BunTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if _, err := r.db.NewInsert().Model(tx).Exec(ctx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *BunTransactionRepository) List(ctx context.Context, filter TransactionFilter, page pagination.Params) ([]models.Transaction, int, error) {
	var items []models.Transaction
	q := r.db.NewSelect().
		Model(&items).
		Where("profile_id = ?", filter.ProfileID)
	if filter.Type != "" {
		q = q.Where("type = ?", strings.ToUpper(filter.Type))
	}
	count, err := q.
		Order("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return items, count, nil
}

// whereAnyLike matches search as a substring of any of the columns. LOWER+LIKE
// keeps it portable between PostgreSQL and SQLite.
func whereAnyLike(q *bun.SelectQuery, search string, columns ...string) *bun.SelectQuery {
	pattern := likePattern(search)
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range columns {
			q = q.WhereOr("LOWER(?) LIKE ?", bun.Ident(col), pattern)
		}
		return q
	})
}
