package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/pagination"
	"github.com/zignal/zignalapi/internal/services/iam"
	"github.com/zignal/zignalapi/internal/session"
	"github.com/zignal/zignalapi/internal/validation"
)

// LoginRequest represents local credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// InvalidateSessionsRequest selects database sessions to revoke.
type InvalidateSessionsRequest struct {
	SessionIDs   []string `json:"sessionIds"`
	All          bool     `json:"all"`
	TargetUserID string   `json:"targetUserId"`
}

// login authenticates local credentials and issues both a custom and a
// database session.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if h.Cfg == nil || !h.Cfg.Features.LocalLogin {
		respondError(w, r, NotFound("Local login is disabled"))
		return
	}

	var req LoginRequest
	if err := h.decodeBody(r, validation.SchemaLogin, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.IAMService.Login(r.Context(), iam.LoginRequest{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	switch {
	case errors.Is(err, iam.ErrInvalidCredentials):
		respondError(w, r, &APIError{Status: http.StatusUnauthorized, Message: "Invalid email or password"})
		return
	case errors.Is(err, iam.ErrProfileDisabled):
		respondError(w, r, Forbidden("Account disabled"))
		return
	case err != nil:
		respondError(w, r, Internal(err))
		return
	}

	if result.CustomToken != "" {
		session.SetCookie(w, result.CustomToken, result.CustomSession.ExpiresAt, h.secureCookies)
	}
	h.setCookie(w, iam.DBSessionCookieName, result.DBToken, result.DBSession.ExpiresAt)

	view := h.IAMService.AdminView(iam.IdentityOf(result.Profile))
	respondMessage(w, map[string]any{
		"user":      userResponse(result.Profile, view),
		"expiresAt": result.DBSession.ExpiresAt,
	}, "Signed in")
}

// logout revokes every session mechanism the request carries and clears all
// session cookies. It always succeeds.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.IAMService.Logout(r.Context(), iam.NewAuthRequest(r))

	for _, name := range []string{session.CookieName, iam.DBSessionCookieName, iam.ProviderSessionCookieName} {
		session.ClearCookie(w, name, h.secureCookies)
	}
	respondMessage(w, nil, "Logged out")
}

func (h *handlers) currentSession(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, whoAmI(p))
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	page := pagination.FromQuery(r.URL.Query())
	sessions, total, err := h.IAMService.ListSessions(r.Context(), profileID, page)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, _ := currentPrincipal(r)
	currentID := ""
	if p.Source == iam.SourceDatabase {
		currentID = p.SessionID
	}
	respondPage(w, sessionResponses(sessions, currentID), total, page)
}

// invalidateSessions revokes the caller's own database sessions. Revoking
// another user's sessions requires the users capability.
func (h *handlers) invalidateSessions(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req InvalidateSessionsRequest
	if err := h.decodeBody(r, validation.SchemaInvalidateSessions, &req); err != nil {
		respondError(w, r, err)
		return
	}

	target := p.ProfileID
	if req.TargetUserID != "" && req.TargetUserID != p.ProfileID {
		allowed, err := h.IAMService.Authorize(r.Context(), p.Admin, auth.ResourceOtherSessions, auth.ActionWrite)
		if err != nil {
			respondError(w, r, Internal(err))
			return
		}
		if !allowed {
			respondError(w, r, Forbidden(""))
			return
		}
		target = req.TargetUserID
	}
	if target == "" {
		respondError(w, r, Forbidden("Profile not provisioned"))
		return
	}

	ids := req.SessionIDs
	if req.All {
		ids = nil
	}
	revoked, err := h.IAMService.InvalidateSessions(r.Context(), target, ids)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, map[string]any{"revoked": revoked}, "Sessions invalidated")
}

// providerCallback runs after a verified authorization-code exchange. It
// provisions the profile, opens a database session, stores the provider ID
// token and redirects back to the site.
func (h *handlers) providerCallback(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims]) {
	ctx := r.Context()
	claims := tokens.IDTokenClaims

	metadataClaim := ""
	if h.Cfg != nil {
		metadataClaim = h.Cfg.Provider.MetadataClaim
	}
	metadata, err := auth.ExtractMetadata(claims.Claims, metadataClaim)
	if err != nil {
		slog.WarnContext(ctx, "provider callback: ignoring metadata claim", "error", err)
	}

	profile, err := h.IAMService.ProvisionProviderProfile(ctx, auth.Identity{
		ID:       claims.Subject,
		Email:    strings.ToLower(claims.Email),
		Name:     claims.Name,
		Metadata: metadata,
	})
	if err != nil {
		slog.ErrorContext(ctx, "provider callback: provision profile", "subject", claims.Subject, "error", err)
		respondError(w, r, Internal(err))
		return
	}
	if profile.Disabled() {
		respondError(w, r, Forbidden("Account disabled"))
		return
	}

	dbSession, token, err := h.IAMService.CreateDBSession(ctx, profile.ID, r.UserAgent(), clientIP(r))
	if err != nil {
		slog.ErrorContext(ctx, "provider callback: create session", "profile_id", profile.ID, "error", err)
		respondError(w, r, Internal(err))
		return
	}

	h.setCookie(w, iam.DBSessionCookieName, token, dbSession.ExpiresAt)
	if tokens.IDToken != "" {
		h.setCookie(w, iam.ProviderSessionCookieName, tokens.IDToken, tokens.Expiry)
	}

	http.Redirect(w, r, h.postLoginRedirect(w, r), http.StatusFound)
}

// postLoginRedirect picks the redirect remembered at login. Only relative
// paths and URLs on the site are honoured.
func (h *handlers) postLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	home := "/"
	if h.Cfg != nil && h.Cfg.SiteURL != "" {
		home = h.Cfg.SiteURL
	}

	redirect := auth.GetRedirectURICookie(w, r)
	switch {
	case redirect == "":
		return home
	case strings.HasPrefix(redirect, "/") && !strings.HasPrefix(redirect, "//"):
		if home != "/" {
			return home + redirect
		}
		return redirect
	case home != "/" && (redirect == home || strings.HasPrefix(redirect, home+"/")):
		return redirect
	default:
		return home
	}
}
