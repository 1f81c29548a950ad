package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/bunx"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Transaction types and statuses.
const (
	TransactionDeposit    = "DEPOSIT"
	TransactionWithdrawal = "WITHDRAWAL"

	TransactionPending   = "PENDING"
	TransactionCompleted = "COMPLETED"
	TransactionFailed    = "FAILED"
	TransactionCancelled = "CANCELLED"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:pay"`

	ID                 string    `bun:"id,pk,type:uuid" json:"id"`
	Amount             float64   `bun:"amount,notnull" json:"amount"`
	Currency           string    `bun:"currency,notnull" json:"currency"`
	Description        string    `bun:"description" json:"description"`
	CustomerName       string    `bun:"customer_name" json:"customerName"`
	CustomerEmail      string    `bun:"customer_email" json:"customerEmail"`
	Status             string    `bun:"status,notnull,default:'pending'" json:"status"`
	PaymentLink        string    `bun:"payment_link" json:"paymentLink"`
	ProviderOrderID    *string   `bun:"provider_order_id" json:"providerOrderId,omitempty"`
	TransactionDetails JSONMap   `bun:"transaction_details,type:jsonb" json:"transactionDetails,omitempty"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt          time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

var _ bun.BeforeAppendModelHook = (*Payment)(nil)

func (p *Payment) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.ID == "" {
			p.ID = bunx.NewUUIDv7()
		}
		if p.Status == "" {
			p.Status = PaymentPending
		}
		p.CreatedAt = now
		p.UpdatedAt = now
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	ProfileID string    `bun:"profile_id,notnull,type:uuid" json:"-"`
	Title     string    `bun:"title,notnull" json:"title"`
	Message   string    `bun:"message,notnull" json:"message"`
	Type      string    `bun:"type,notnull,default:'info'" json:"type"`
	IsRead    bool      `bun:"is_read,notnull,default:false" json:"isRead"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

var _ bun.BeforeAppendModelHook = (*Notification)(nil)

func (n *Notification) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if n.ID == "" {
			n.ID = bunx.NewUUIDv7()
		}
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}

type News struct {
	bun.BaseModel `bun:"table:news,alias:nw"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Source      string    `bun:"source" json:"source"`
	URL         string    `bun:"url" json:"url"`
	Summary     string    `bun:"summary" json:"summary"`
	PublishedAt time.Time `bun:"published_at,notnull,default:current_timestamp" json:"publishedAt"`
}

var _ bun.BeforeAppendModelHook = (*News)(nil)

func (n *News) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if n.ID == "" {
			n.ID = bunx.NewUUIDv7()
		}
		if n.PublishedAt.IsZero() {
			n.PublishedAt = time.Now().UTC()
		}
	}
	return nil
}

// Transaction is a deposit or withdrawal row.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:tx"`

	ID          string     `bun:"id,pk,type:uuid" json:"id"`
	ProfileID   string     `bun:"profile_id,notnull,type:uuid" json:"-"`
	Type        string     `bun:"type,notnull" json:"type"`
	Amount      float64    `bun:"amount,notnull" json:"amount"`
	Currency    string     `bun:"currency,notnull" json:"currency"`
	Status      string     `bun:"status,notnull,default:'PENDING'" json:"status"`
	Method      *string    `bun:"method" json:"method,omitempty"`
	Destination *string    `bun:"destination" json:"destination,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	CompletedAt *time.Time `bun:"completed_at" json:"completedAt,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Transaction)(nil)

func (t *Transaction) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if t.ID == "" {
			t.ID = bunx.NewUUIDv7()
		}
		if t.Status == "" {
			t.Status = TransactionPending
		}
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

type Signal struct {
	bun.BaseModel `bun:"table:signals,alias:sig"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	ProfileID   *string   `bun:"profile_id,type:uuid" json:"-"`
	Pair        string    `bun:"pair,notnull" json:"pair"`
	Action      string    `bun:"action,notnull" json:"action"`
	TargetPrice float64   `bun:"target_price" json:"targetPrice"`
	StopLoss    float64   `bun:"stop_loss" json:"stopLoss"`
	TakeProfits FloatList `bun:"take_profits,type:jsonb" json:"takeProfits"`
	Status      string    `bun:"status,notnull,default:'active'" json:"status"`
	Confidence  int       `bun:"confidence" json:"confidence"`
	IssuedAt    time.Time `bun:"issued_at,notnull,default:current_timestamp" json:"issuedAt"`
}

var _ bun.BeforeAppendModelHook = (*Signal)(nil)

func (s *Signal) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if s.ID == "" {
			s.ID = bunx.NewUUIDv7()
		}
		if s.Status == "" {
			s.Status = "active"
		}
		if s.IssuedAt.IsZero() {
			s.IssuedAt = time.Now().UTC()
		}
	}
	return nil
}

type Trade struct {
	bun.BaseModel `bun:"table:trades,alias:tr"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	ProfileID string    `bun:"profile_id,notnull,type:uuid" json:"-"`
	Pair      string    `bun:"pair,notnull" json:"pair"`
	Side      string    `bun:"side,notnull" json:"side"`
	Price     float64   `bun:"price,notnull" json:"price"`
	Amount    float64   `bun:"amount,notnull" json:"amount"`
	PnL       float64   `bun:"pnl" json:"pnl"`
	Time      time.Time `bun:"time,notnull,default:current_timestamp" json:"time"`
}

var _ bun.BeforeAppendModelHook = (*Trade)(nil)

func (t *Trade) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if t.ID == "" {
			t.ID = bunx.NewUUIDv7()
		}
		if t.Time.IsZero() {
			t.Time = time.Now().UTC()
		}
	}
	return nil
}
