package server

import (
	"net"
	"net/http"
	"time"

	"github.com/zignal/zignalapi/internal/auth"
)

// decodeBody validates the request body against schema and decodes it into dst.
func (h *handlers) decodeBody(r *http.Request, schema string, dst any) error {
	return h.Validator.DecodeAndValidate(r.Body, schema, dst)
}

// currentPrincipal returns the principal stored by the session middleware.
func currentPrincipal(r *http.Request) (auth.AuthenticatedPrincipal, error) {
	p, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		return auth.AuthenticatedPrincipal{}, Unauthorized()
	}
	return p, nil
}

// currentProfileID returns the caller's profile id. Provider tokens for users
// that never completed the provider login carry no profile.
func currentProfileID(r *http.Request) (string, error) {
	p, err := currentPrincipal(r)
	if err != nil {
		return "", err
	}
	if p.ProfileID == "" {
		return "", Forbidden("Profile not provisioned")
	}
	return p.ProfileID, nil
}

// clientIP strips the port from RemoteAddr. RealIP has already replaced it
// with the forwarded address when one is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *handlers) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

