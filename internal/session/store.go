// Package session issues and validates the custom signed session: an HS256
// token in the zg_session cookie backed by a server-side record.
package session

import (
	"context"
	"time"
)

// Record is the server-side half of a custom session.
type Record struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserAgent string    `json:"userAgent,omitempty"`
	IP        string    `json:"ip,omitempty"`
}

// Store keeps session records until they expire or are deleted.
// Get returns (nil, nil) for unknown or expired ids.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}
