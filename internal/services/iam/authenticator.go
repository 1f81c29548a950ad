package iam

import (
	"context"
	"net/http"
)

// Authenticator is one session source.
//
// Return values:
//   - (principal, nil): Authentication successful
//   - (nil, nil): Credentials not present (not an error, try next source)
//   - (nil, error): Credentials present but invalid
type Authenticator interface {
	// Name is the source name used in configuration, logs and metrics.
	Name() string
	Authenticate(ctx context.Context, req AuthRequest) (*Principal, error)
}

// AuthRequest carries the request data session sources need.
type AuthRequest struct {
	Headers    http.Header
	Cookies    []*http.Cookie
	RemoteAddr string
	UserAgent  string
}

// NewAuthRequest captures the credential-bearing parts of r.
func NewAuthRequest(r *http.Request) AuthRequest {
	return AuthRequest{
		Headers:    r.Header,
		Cookies:    r.Cookies(),
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
}

// Cookie returns the value of the named cookie, or "".
func (r AuthRequest) Cookie(name string) string {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
