package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/zignal/zignalapi/internal/config"
)

const redirectCookieName = "zg.redirect_uri"

// CallbackFunc receives the verified tokens of a completed provider login.
type CallbackFunc func(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims])

// RelyingParty handles the authorization-code flow against the identity
// provider by wrapping the zitadel/oidc RelyingParty implementation.
type RelyingParty struct {
	rp rp.RelyingParty
}

// NewRelyingParty discovers the provider and prepares the state/PKCE cookie
// handler. cookiePassword must be 32 bytes; it keys both cookie signing and
// encryption.
func NewRelyingParty(ctx context.Context, cfg config.ProviderConfig, cookiePassword string, secure bool) (*RelyingParty, error) {
	if len(cookiePassword) != 32 {
		return nil, fmt.Errorf("cookie password must be exactly 32 bytes")
	}
	key := []byte(cookiePassword)

	cookieOpts := []httphelper.CookieHandlerOpt{}
	if !secure {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(key, key, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(30 * time.Second)),
		rp.WithPKCE(cookieHandler),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI,
		cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty}, nil
}

// LoginHandler redirects to the provider's authorization endpoint. A
// "redirect" query parameter is remembered for the callback.
func (r *RelyingParty) LoginHandler() http.HandlerFunc {
	authURL := rp.AuthURLHandler(func() string {
		state, err := GenerateNonce()
		if err != nil {
			return fmt.Sprintf("%d", time.Now().UnixNano())
		}
		return state
	}, r.rp)

	return func(w http.ResponseWriter, req *http.Request) {
		if redirect := req.URL.Query().Get("redirect"); redirect != "" {
			SetRedirectURICookie(w, req, redirect)
		}
		authURL(w, req)
	}
}

// CallbackHandler verifies state and PKCE, exchanges the code, and hands the
// verified tokens to callback.
func (r *RelyingParty) CallbackHandler(callback CallbackFunc) http.HandlerFunc {
	return rp.CodeExchangeHandler(func(w http.ResponseWriter, req *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], _ string, _ rp.RelyingParty) {
		callback(w, req, tokens)
	}, r.rp)
}

func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random nonce string.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetRedirectURICookie stores the post-login redirect in a short-lived cookie.
func SetRedirectURICookie(w http.ResponseWriter, r *http.Request, redirectURI string) {
	http.SetCookie(w, &http.Cookie{
		Name:     redirectCookieName,
		Value:    redirectURI,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetRedirectURICookie retrieves and clears the redirect cookie.
// Returns empty string if cookie not found or expired.
func GetRedirectURICookie(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(redirectCookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     redirectCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	return cookie.Value
}
