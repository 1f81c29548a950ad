package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/bunx"
)

// Subscription statuses.
const (
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
)

// Package is a purchasable signal subscription plan.
type Package struct {
	bun.BaseModel `bun:"table:packages,alias:pkg"`

	ID           string     `bun:"id,pk,type:uuid" json:"id"`
	Name         string     `bun:"name,notnull" json:"name"`
	Description  string     `bun:"description" json:"description"`
	Price        float64    `bun:"price,notnull" json:"price"`
	Currency     string     `bun:"currency,notnull,default:'USD'" json:"currency"`
	DurationDays int        `bun:"duration_days,notnull" json:"durationDays"`
	Features     StringList `bun:"features,type:jsonb" json:"features"`
	Active       bool       `bun:"active,notnull,default:true" json:"active"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

var _ bun.BeforeAppendModelHook = (*Package)(nil)

func (p *Package) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.ID == "" {
			p.ID = bunx.NewUUIDv7()
		}
		if p.Currency == "" {
			p.Currency = "USD"
		}
		p.CreatedAt = now
		p.UpdatedAt = now
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

// Subscription links a profile to a package for a period.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:sub"`

	ID        string     `bun:"id,pk,type:uuid" json:"id"`
	ProfileID string     `bun:"profile_id,notnull,type:uuid" json:"-"`
	PackageID string     `bun:"package_id,notnull,type:uuid" json:"packageId"`
	Status    string     `bun:"status,notnull,default:'active'" json:"status"`
	StartedAt time.Time  `bun:"started_at,notnull,default:current_timestamp" json:"startedAt"`
	ExpiresAt *time.Time `bun:"expires_at" json:"expiresAt,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Subscription)(nil)

func (s *Subscription) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if s.ID == "" {
			s.ID = bunx.NewUUIDv7()
		}
		if s.Status == "" {
			s.Status = SubscriptionActive
		}
		if s.StartedAt.IsZero() {
			s.StartedAt = time.Now().UTC()
		}
	}
	return nil
}
