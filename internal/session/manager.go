package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName carries the signed custom session token.
const CookieName = "zg_session"

var (
	// ErrInvalidToken covers malformed, badly signed and expired tokens.
	ErrInvalidToken = errors.New("session: invalid token")
	// ErrRevoked means the token is well formed but its record is gone.
	ErrRevoked = errors.New("session: revoked or unknown session")
)

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager issues, validates and revokes custom sessions.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(store Store, secret string, ttl time.Duration) *Manager {
	return &Manager{store: store, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of newly issued sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue stores a new record for profileID and returns its signed token.
func (m *Manager) Issue(ctx context.Context, profileID, userAgent, ip string) (string, *Record, error) {
	now := m.now().UTC().Truncate(time.Second)
	rec := Record{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ProfileID: profileID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		UserAgent: userAgent,
		IP:        ip,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: rec.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profileID,
			IssuedAt:  jwt.NewNumericDate(rec.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}

	if err := m.store.Put(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	return token, &rec, nil
}

// Validate checks the signature and expiry of token and that its record is
// still present and belongs to the token's subject.
func (m *Manager) Validate(ctx context.Context, token string) (*Record, error) {
	c, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	rec, err := m.store.Get(ctx, c.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil || rec.ProfileID != c.Subject {
		return nil, ErrRevoked
	}
	return rec, nil
}

// Revoke deletes the record behind token. Tokens with a bad signature are
// rejected; expired ones are still revoked.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	c, err := m.parse(token)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return err
	}
	if c == nil || c.SessionID == "" {
		return ErrInvalidToken
	}
	return m.store.Delete(ctx, c.SessionID)
}

func (m *Manager) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return &c, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.SessionID == "" || c.Subject == "" {
		return nil, fmt.Errorf("%w: missing sid or sub", ErrInvalidToken)
	}
	return &c, nil
}

// SetCookie issues the session cookie to the client.
func SetCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the named cookie from the client.
func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
