package auth

import "context"

// AuthenticatedPrincipal captures identity metadata propagated through the request context.
type AuthenticatedPrincipal struct {
	// Subject is the provider user id, or the profile id for local sessions.
	Subject string
	// ProfileID references the profiles row backing this principal.
	// Empty for provider tokens whose user has not been provisioned yet.
	ProfileID string
	Email     string
	Name      string
	// SessionID references the custom or database session when available.
	SessionID string
	// Source names the session source that authenticated the request.
	Source   string
	Metadata map[string]any
	Admin    AdminView
}

// Identity returns the gate input for the principal.
func (p AuthenticatedPrincipal) Identity() Identity {
	id := p.ProfileID
	if id == "" {
		id = p.Subject
	}
	return Identity{ID: id, Email: p.Email, Name: p.Name, Metadata: p.Metadata}
}

type principalContextKey struct{}

// SetUserContext stores the authenticated principal on the context for downstream consumers.
func SetUserContext(ctx context.Context, principal AuthenticatedPrincipal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetUserFromContext retrieves the authenticated principal from the context.
func GetUserFromContext(ctx context.Context) (AuthenticatedPrincipal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(AuthenticatedPrincipal)
	return principal, ok
}
