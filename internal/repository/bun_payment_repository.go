package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/bunx"
	"github.com/zignal/zignalapi/internal/db/models"
)

// BunPaymentRepository implements PaymentRepository using Bun ORM
type BunPaymentRepository struct {
	db *bun.DB
}

func NewBunPaymentRepository(db *bun.DB) *BunPaymentRepository {
	return &BunPaymentRepository{db: db}
}

func (r *BunPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if _, err := r.db.NewInsert().Model(payment).Exec(ctx); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *BunPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return getPayment(ctx, r.db, "id", id)
}

func (r *BunPaymentRepository) GetByProviderOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return getPayment(ctx, r.db, "provider_order_id", orderID)
}

func getPayment(ctx context.Context, db bun.IDB, column, value string) (*models.Payment, error) {
	if column == "id" && !bunx.IsUUID(value) {
		return nil, notFound("payment", value)
	}
	payment := new(models.Payment)
	err := db.NewSelect().
		Model(payment).
		Where("? = ?", bun.Ident(column), value).
		Scan(ctx)
	if err != nil {
		return nil, wrapNoRows(err, "payment", value, "get payment by "+column)
	}
	return payment, nil
}

// List returns payments newest first with limit/offset paging
func (r *BunPaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int, error) {
	var payments []models.Payment
	q := r.db.NewSelect().Model(&payments)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	count, err := q.Order("created_at DESC", "id DESC").ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return payments, count, nil
}

// UpdateStatus reads and conditionally writes the payment inside one
// transaction. When the stored row already matches u nothing is written and
// the stored row, updated_at included, is returned as is.
func (r *BunPaymentRepository) UpdateStatus(ctx context.Context, u PaymentStatusUpdate) (*models.Payment, bool, error) {
	var (
		payment *models.Payment
		changed bool
	)
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		current, err := getPayment(ctx, tx, "id", u.PaymentID)
		if err != nil {
			return err
		}

		if paymentMatches(current, u) {
			payment = current
			return nil
		}

		current.Status = u.Status
		cols := []string{"status", "updated_at"}
		if u.ProviderOrderID != nil {
			current.ProviderOrderID = u.ProviderOrderID
			cols = append(cols, "provider_order_id")
		}
		if u.TransactionDetails != nil {
			current.TransactionDetails = u.TransactionDetails
			cols = append(cols, "transaction_details")
		}
		if _, err := tx.NewUpdate().Model(current).Column(cols...).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		payment = current
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payment, changed, nil
}

func paymentMatches(p *models.Payment, u PaymentStatusUpdate) bool {
	if p.Status != u.Status {
		return false
	}
	if u.ProviderOrderID != nil && (p.ProviderOrderID == nil || *p.ProviderOrderID != *u.ProviderOrderID) {
		return false
	}
	if u.TransactionDetails != nil && !sameJSON(p.TransactionDetails, u.TransactionDetails) {
		return false
	}
	return true
}

// sameJSON compares two documents by their canonical encoding; map keys are
// sorted by encoding/json so key order does not matter.
func sameJSON(a, b models.JSONMap) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ab) == string(bb)
}

// Totals aggregates payment count and amount per status
func (r *BunPaymentRepository) Totals(ctx context.Context) ([]PaymentTotal, error) {
	var totals []PaymentTotal
	err := r.db.NewSelect().
		Model((*models.Payment)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Order("status").
		Scan(ctx, &totals)
	if err != nil {
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	return totals, nil
}
