package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/repository"
)

// ProviderAuthenticator verifies identity provider JWTs from the
// Authorization header or the __session cookie against the provider's JWKS.
type ProviderAuthenticator struct {
	tokenHandler  *oidctoken.TokenHandler[map[string]any]
	profiles      repository.ProfileRepository
	metadataClaim string
}

// NewProviderAuthenticator returns (nil, nil) when no provider is configured.
// Keys are fetched on first use so startup does not depend on the provider.
func NewProviderAuthenticator(cfg config.ProviderConfig, profiles repository.ProfileRepository) (*ProviderAuthenticator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("provider client id is required")
	}

	tokenHandler, err := oidctoken.New[map[string]any](nil,
		options.WithIssuer(cfg.Issuer),
		options.WithRequiredAudience(cfg.ClientID),
		options.WithLazyLoadJwks(true),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize oidc token handler: %w", err)
	}

	return &ProviderAuthenticator{
		tokenHandler:  tokenHandler,
		profiles:      profiles,
		metadataClaim: cfg.MetadataClaim,
	}, nil
}

func (a *ProviderAuthenticator) Name() string { return SourceProvider }

func (a *ProviderAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	token := a.tokenString(req)
	if token == "" {
		return nil, nil
	}

	claims, err := a.tokenHandler.ParseToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	identity, err := auth.IdentityFromClaims(claims, a.metadataClaim)
	if err != nil {
		return nil, fmt.Errorf("invalid token claims: %w", err)
	}

	principal := &Principal{
		Subject:  identity.ID,
		Email:    identity.Email,
		Name:     identity.Name,
		Source:   SourceProvider,
		Metadata: identity.Metadata,
	}

	profile, err := a.profiles.GetBySubject(ctx, identity.ID)
	if errors.Is(err, repository.ErrNotFound) && identity.Email != "" {
		profile, err = a.profiles.GetByEmail(ctx, identity.Email)
		if err == nil && profile.Subject != nil && *profile.Subject != identity.ID {
			// Email belongs to a profile linked to another subject.
			profile, err = nil, repository.ErrNotFound
		}
	}
	switch {
	case err == nil:
		if profile.Disabled() {
			return nil, fmt.Errorf("profile is disabled")
		}
		principal.ProfileID = profile.ID
		if principal.Email == "" {
			principal.Email = profile.Email
		}
		if principal.Name == "" {
			principal.Name = profile.Name
		}
		if principal.Metadata == nil {
			principal.Metadata = map[string]any(profile.Metadata)
		}
	case errors.Is(err, repository.ErrNotFound):
		// Not provisioned yet; the provider login callback creates the profile.
	default:
		return nil, fmt.Errorf("load profile: %w", err)
	}

	return principal, nil
}

func (a *ProviderAuthenticator) tokenString(req AuthRequest) string {
	tokenStrings := [][]options.TokenStringOption{
		{}, // Default: Authorization header
	}
	if token, err := oidctoken.GetTokenString(req.Headers.Get, tokenStrings); err == nil && token != "" {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(req.Cookie(ProviderSessionCookieName))
}
