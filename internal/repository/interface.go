package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ProfileRepository persists the local mirror of provider identities.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetBySubject(ctx context.Context, subject string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	UpdateLastLogin(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, id string, passwordHash string) error
	SetMetadata(ctx context.Context, id string, metadata models.JSONMap) error
	LinkSubject(ctx context.Context, id string, subject string) error
	List(ctx context.Context, page pagination.Params) ([]models.Profile, int, error)
	ListAll(ctx context.Context) ([]models.Profile, error)
}

// SessionRepository persists database sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	ListByProfile(ctx context.Context, profileID string, page pagination.Params) ([]models.Session, int, error)
	UpdateLastUsed(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	// RevokeForProfile revokes the given sessions of a profile, or all of them
	// when ids is empty. Ids owned by other profiles are ignored.
	RevokeForProfile(ctx context.Context, profileID string, ids []string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, profileID string, unreadOnly bool, page pagination.Params) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, profileID, id string) error
	MarkAllRead(ctx context.Context, profileID string) (int64, error)
}

// PaymentFilter selects payments for the admin listing.
type PaymentFilter struct {
	Status string
	Limit  int
	Offset int
}

// PaymentStatusUpdate is a requested change to a payment. Nil optional fields
// leave the stored values alone.
type PaymentStatusUpdate struct {
	PaymentID          string
	Status             string
	ProviderOrderID    *string
	TransactionDetails models.JSONMap
}

// PaymentTotal aggregates payments sharing a status.
type PaymentTotal struct {
	Status string  `bun:"status" json:"status"`
	Count  int     `bun:"count" json:"count"`
	Amount float64 `bun:"amount" json:"amount"`
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByProviderOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int, error)
	// UpdateStatus applies u only when it differs from the stored row and
	// reports whether a write happened.
	UpdateStatus(ctx context.Context, u PaymentStatusUpdate) (*models.Payment, bool, error)
	Totals(ctx context.Context) ([]PaymentTotal, error)
}

type NewsRepository interface {
	Create(ctx context.Context, n *models.News) error
	List(ctx context.Context, search string, page pagination.Params) ([]models.News, int, error)
}

// TransactionFilter narrows a profile's transactions. Empty Type means all.
type TransactionFilter struct {
	ProfileID string
	Type      string
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	List(ctx context.Context, filter TransactionFilter, page pagination.Params) ([]models.Transaction, int, error)
}

type SignalFilter struct {
	Pair   string
	Action string
	Search string
}

type SignalRepository interface {
	Create(ctx context.Context, s *models.Signal) error
	List(ctx context.Context, filter SignalFilter, page pagination.Params) ([]models.Signal, int, error)
}

type TradeFilter struct {
	ProfileID string
	Pair      string
	Side      string
	Search    string
}

type TradeRepository interface {
	Create(ctx context.Context, t *models.Trade) error
	List(ctx context.Context, filter TradeFilter, page pagination.Params) ([]models.Trade, int, error)
}

// PackageView is a package with its count of active subscribers.
type PackageView struct {
	models.Package
	SubscriberCount int `json:"subscriberCount"`
}

type PackageRepository interface {
	Create(ctx context.Context, pkg *models.Package) error
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	// ListWithSubscriberCounts returns every package newest first. Only
	// active subscriptions are counted.
	ListWithSubscriberCounts(ctx context.Context) ([]PackageView, error)
}
