package iam

import (
	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/db/models"
)

// Session source names.
const (
	SourceCustom   = "custom"
	SourceDatabase = "database"
	SourceProvider = "provider"
)

// Cookie names for the database and provider sources. The custom source uses
// session.CookieName.
const (
	DBSessionCookieName       = "zg_db_session"
	ProviderSessionCookieName = "__session"
)

// Principal is the result of a successful session resolution. It is built
// once per request and not modified afterwards.
type Principal struct {
	// Subject is the provider user id, or the profile id for local sessions.
	Subject string
	// ProfileID references profiles.id. Empty when a provider token belongs to
	// a user that has not signed in through the provider login yet.
	ProfileID string
	Email     string
	Name      string
	// SessionID references the custom or database session when available.
	SessionID string
	// Source is the session source that authenticated the request.
	Source   string
	Metadata map[string]any
}

// Identity returns the admin gate input for the principal.
func (p *Principal) Identity() auth.Identity {
	id := p.ProfileID
	if id == "" {
		id = p.Subject
	}
	return auth.Identity{ID: id, Email: p.Email, Name: p.Name, Metadata: p.Metadata}
}

// Authenticated converts the principal into the context value handlers read.
func (p *Principal) Authenticated(view auth.AdminView) auth.AuthenticatedPrincipal {
	return auth.AuthenticatedPrincipal{
		Subject:   p.Subject,
		ProfileID: p.ProfileID,
		Email:     p.Email,
		Name:      p.Name,
		SessionID: p.SessionID,
		Source:    p.Source,
		Metadata:  p.Metadata,
		Admin:     view,
	}
}

// principalFromProfile builds a principal for sessions backed by a profile row.
func principalFromProfile(profile *models.Profile, sessionID, source string) *Principal {
	subject := profile.ID
	if profile.Subject != nil && *profile.Subject != "" {
		subject = *profile.Subject
	}
	return &Principal{
		Subject:   subject,
		ProfileID: profile.ID,
		Email:     profile.Email,
		Name:      profile.Name,
		SessionID: sessionID,
		Source:    source,
		Metadata:  map[string]any(profile.Metadata),
	}
}
