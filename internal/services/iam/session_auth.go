package iam

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/repository"
)

// SessionAuthenticator authenticates requests using the opaque zg_db_session
// cookie. Only the SHA-256 hash of the token is looked up.
type SessionAuthenticator struct {
	profiles repository.ProfileRepository
	sessions repository.SessionRepository
	now      func() time.Time
}

func NewSessionAuthenticator(profiles repository.ProfileRepository, sessions repository.SessionRepository) *SessionAuthenticator {
	return &SessionAuthenticator{profiles: profiles, sessions: sessions, now: time.Now}
}

func (a *SessionAuthenticator) Name() string { return SourceDatabase }

// Authenticate extracts and validates the database session cookie.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	token := req.Cookie(DBSessionCookieName)
	if token == "" {
		return nil, nil
	}

	sess, err := a.sessions.GetByTokenHash(ctx, auth.HashBearerToken(token))
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if sess.Revoked {
		return nil, fmt.Errorf("session has been revoked")
	}
	if !sess.Active(a.now()) {
		return nil, fmt.Errorf("session has expired")
	}

	profile, err := a.profiles.GetByID(ctx, sess.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.Disabled() {
		return nil, fmt.Errorf("profile is disabled")
	}

	// Best effort and detached from the request.
	go func(id string) {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.sessions.UpdateLastUsed(bgCtx, id); err != nil {
			slog.Debug("update session last used", "session_id", id, "error", err)
		}
	}(sess.ID)

	return principalFromProfile(profile, sess.ID, SourceDatabase), nil
}
