package iam

import (
	"context"
	"fmt"

	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/session"
)

// CustomSessionAuthenticator validates the signed zg_session cookie against
// the session manager.
type CustomSessionAuthenticator struct {
	manager  *session.Manager
	profiles repository.ProfileRepository
}

func NewCustomSessionAuthenticator(manager *session.Manager, profiles repository.ProfileRepository) *CustomSessionAuthenticator {
	return &CustomSessionAuthenticator{manager: manager, profiles: profiles}
}

func (a *CustomSessionAuthenticator) Name() string { return SourceCustom }

func (a *CustomSessionAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	token := req.Cookie(session.CookieName)
	if token == "" {
		return nil, nil
	}

	rec, err := a.manager.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	profile, err := a.profiles.GetByID(ctx, rec.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.Disabled() {
		return nil, fmt.Errorf("profile is disabled")
	}

	return principalFromProfile(profile, rec.ID, SourceCustom), nil
}
