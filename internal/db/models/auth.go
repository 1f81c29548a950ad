package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/db/bunx"
)

// Profile mirrors an identity owned by the identity provider. Subject holds the
// provider user id; PasswordHash is only set for legacy local credentials.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID           string     `bun:"id,pk,type:uuid"`
	Subject      *string    `bun:"subject,unique"`
	Email        string     `bun:"email,notnull,unique"`
	Name         string     `bun:"name"`
	Metadata     JSONMap    `bun:"metadata,type:jsonb,notnull,default:'{}'"`
	PasswordHash *string    `bun:"password_hash"`
	AvatarURL    *string    `bun:"avatar_url"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

var _ bun.BeforeAppendModelHook = (*Profile)(nil)

func (p *Profile) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.ID == "" {
			p.ID = bunx.NewUUIDv7()
		}
		if p.Metadata == nil {
			p.Metadata = JSONMap{}
		}
		p.CreatedAt = now
		p.UpdatedAt = now
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

// Disabled reports whether the profile has been disabled.
func (p *Profile) Disabled() bool {
	return p != nil && p.DisabledAt != nil
}

// Session is a database-backed session. Only the SHA-256 hash of the opaque
// cookie token is stored.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	ID         string    `bun:"id,pk,type:uuid"`
	ProfileID  string    `bun:"profile_id,notnull,type:uuid"`
	TokenHash  string    `bun:"token_hash,notnull,unique"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	LastUsedAt time.Time `bun:"last_used_at,notnull,default:current_timestamp"`
	UserAgent  *string   `bun:"user_agent"`
	IPAddress  *string   `bun:"ip_address"`
	Revoked    bool      `bun:"revoked,notnull,default:false"`
}

var _ bun.BeforeAppendModelHook = (*Session)(nil)

func (s *Session) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now().UTC()
		if s.ID == "" {
			s.ID = bunx.NewUUIDv7()
		}
		s.CreatedAt = now
		s.LastUsedAt = now
	}
	return nil
}

// Active reports whether the session is usable at t.
func (s *Session) Active(t time.Time) bool {
	return s != nil && !s.Revoked && t.Before(s.ExpiresAt)
}
