package iam

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/session"
)

func TestAuthenticateRequest_Order(t *testing.T) {
	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)

	customP := &Principal{Subject: "c", Source: SourceCustom}
	dbP := &Principal{Subject: "d", Source: SourceDatabase}

	tests := []struct {
		name       string
		custom     *stubAuthenticator
		database   *stubAuthenticator
		provider   *stubAuthenticator
		wantSource string
		wantCalls  [3]int
	}{
		{
			name:       "custom wins without consulting others",
			custom:     &stubAuthenticator{name: SourceCustom, principal: customP},
			database:   &stubAuthenticator{name: SourceDatabase, principal: dbP},
			provider:   &stubAuthenticator{name: SourceProvider},
			wantSource: SourceCustom,
			wantCalls:  [3]int{1, 0, 0},
		},
		{
			name:       "rejected custom falls through",
			custom:     &stubAuthenticator{name: SourceCustom, err: errors.New("bad signature")},
			database:   &stubAuthenticator{name: SourceDatabase, principal: dbP},
			provider:   &stubAuthenticator{name: SourceProvider},
			wantSource: SourceDatabase,
			wantCalls:  [3]int{1, 1, 0},
		},
		{
			name:       "no credentials anywhere",
			custom:     &stubAuthenticator{name: SourceCustom},
			database:   &stubAuthenticator{name: SourceDatabase},
			provider:   &stubAuthenticator{name: SourceProvider},
			wantSource: "",
			wantCalls:  [3]int{1, 1, 1},
		},
		{
			name:       "every source rejects",
			custom:     &stubAuthenticator{name: SourceCustom, err: errors.New("x")},
			database:   &stubAuthenticator{name: SourceDatabase, err: errors.New("y")},
			provider:   &stubAuthenticator{name: SourceProvider, err: errors.New("z")},
			wantSource: "",
			wantCalls:  [3]int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewIAMService(IAMServiceDependencies{
				Enforcer:       enforcer,
				Authenticators: []Authenticator{tt.custom, tt.database, tt.provider},
			}, IAMServiceConfig{})
			require.NoError(t, err)

			p, err := svc.AuthenticateRequest(context.Background(), AuthRequest{Headers: http.Header{}})
			require.NoError(t, err)
			if tt.wantSource == "" {
				assert.Nil(t, p)
			} else {
				require.NotNil(t, p)
				assert.Equal(t, tt.wantSource, p.Source)
			}
			assert.Equal(t, tt.wantCalls, [3]int{tt.custom.calls, tt.database.calls, tt.provider.calls})
		})
	}
}

func TestAuthenticateRequest_CancelledContext(t *testing.T) {
	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)
	stub := &stubAuthenticator{name: SourceCustom}
	svc, err := NewIAMService(IAMServiceDependencies{Enforcer: enforcer, Authenticators: []Authenticator{stub}}, IAMServiceConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.AuthenticateRequest(ctx, AuthRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stub.calls)
}

func TestNewIAMService_Sources(t *testing.T) {
	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)
	manager := session.NewManager(session.NewMemoryStore(time.Hour), testJWTSecret, time.Hour)
	deps := IAMServiceDependencies{Enforcer: enforcer, SessionManager: manager}

	t.Run("provider skipped when unconfigured", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{Sources: []string{"database", "provider", "custom"}}}
		svc, err := NewIAMService(deps, IAMServiceConfig{Config: cfg})
		require.NoError(t, err)
		assert.Equal(t, []string{SourceDatabase, SourceCustom}, svc.SourceNames())
	})

	t.Run("provider included when configured", func(t *testing.T) {
		cfg := &config.Config{
			Session:  config.SessionConfig{Sources: []string{"provider", "custom"}},
			Provider: config.ProviderConfig{Issuer: "https://idp.example.com", ClientID: "zignal"},
		}
		svc, err := NewIAMService(deps, IAMServiceConfig{Config: cfg})
		require.NoError(t, err)
		assert.Equal(t, []string{SourceProvider, SourceCustom}, svc.SourceNames())
	})

	t.Run("unknown source", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{Sources: []string{"custom", "ldap"}}}
		_, err := NewIAMService(deps, IAMServiceConfig{Config: cfg})
		assert.ErrorContains(t, err, `unknown session source "ldap"`)
	})

	t.Run("only unconfigured provider", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{Sources: []string{"provider"}}}
		_, err := NewIAMService(deps, IAMServiceConfig{Config: cfg})
		assert.ErrorContains(t, err, "no session sources")
	})
}

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	all := env.svc.AdminView(auth.Identity{Email: "boss@example.com"})
	payments := env.svc.AdminView(auth.Identity{Email: "ops@example.com", Metadata: map[string]any{
		"role": "admin", "adminPermissions": []any{"payments"},
	}})
	member := env.svc.AdminView(auth.Identity{Email: "member@example.com"})

	ok, err := env.svc.Authorize(ctx, all, auth.ResourceAdminSystem, auth.ActionRead)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.svc.Authorize(ctx, payments, auth.ResourcePayments, auth.ActionWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.svc.Authorize(ctx, payments, auth.ResourceAdminUsers, auth.ActionRead)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.svc.Authorize(ctx, member, auth.ResourcePayments, auth.ActionRead)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateProfile(ctx, CreateProfileRequest{Email: "Trader@Example.com", Name: "Trader", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "member", created.Metadata["role"])

	_, err = env.svc.Login(ctx, LoginRequest{Email: "trader@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := env.svc.Login(ctx, LoginRequest{Email: "trader@example.com", Password: "s3cret-pass", UserAgent: "test", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, result.Profile.ID)
	require.NotEmpty(t, result.CustomToken)
	require.NotEmpty(t, result.DBToken)

	req := requestWithCookies(
		&http.Cookie{Name: session.CookieName, Value: result.CustomToken},
		&http.Cookie{Name: DBSessionCookieName, Value: result.DBToken},
	)
	p, err := env.svc.AuthenticateRequest(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, SourceCustom, p.Source)
	assert.Equal(t, created.ID, p.ProfileID)

	env.svc.Logout(ctx, req)

	p, err = env.svc.AuthenticateRequest(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, p, "both sessions are revoked")

	stored, err := env.sessions.GetByID(ctx, result.DBSession.ID)
	require.NoError(t, err)
	assert.True(t, stored.Revoked)
}

func TestLogout_BestEffort(t *testing.T) {
	env := newTestEnv(t)
	assert.NotPanics(t, func() {
		env.svc.Logout(context.Background(), requestWithCookies(
			&http.Cookie{Name: session.CookieName, Value: "garbage"},
			&http.Cookie{Name: DBSessionCookieName, Value: "unknown"},
		))
	})
}

func TestLogin_DisabledProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.svc.CreateProfile(ctx, CreateProfileRequest{Email: "gone@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	now := time.Now().UTC()
	p.DisabledAt = &now
	require.NoError(t, env.profiles.Update(ctx, p))

	_, err = env.svc.Login(ctx, LoginRequest{Email: "gone@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrProfileDisabled)
}

func TestCreateProfile_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateProfile(ctx, CreateProfileRequest{Email: "", Password: "s3cret-pass"})
	assert.Error(t, err)
	_, err = env.svc.CreateProfile(ctx, CreateProfileRequest{Email: "a@example.com", Password: "short"})
	assert.Error(t, err)
	_, err = env.svc.CreateProfile(ctx, CreateProfileRequest{Email: "a@example.com", Password: "s3cret-pass", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestProvisionProviderProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("creates", func(t *testing.T) {
		p, err := env.svc.ProvisionProviderProfile(ctx, auth.Identity{ID: "user_new", Email: "new@example.com", Name: "New"})
		require.NoError(t, err)
		require.NotNil(t, p.Subject)
		assert.Equal(t, "user_new", *p.Subject)

		again, err := env.svc.ProvisionProviderProfile(ctx, auth.Identity{ID: "user_new", Email: "new@example.com"})
		require.NoError(t, err)
		assert.Equal(t, p.ID, again.ID)
	})

	t.Run("links by email and mirrors metadata", func(t *testing.T) {
		existing := env.createProfile(t, "legacy@example.com", nil)
		p, err := env.svc.ProvisionProviderProfile(ctx, auth.Identity{
			ID: "user_legacy", Email: "Legacy@example.com", Metadata: map[string]any{"role": "admin"},
		})
		require.NoError(t, err)
		assert.Equal(t, existing.ID, p.ID)

		stored, err := env.profiles.GetBySubject(ctx, "user_legacy")
		require.NoError(t, err)
		assert.Equal(t, "admin", stored.Metadata["role"])
	})

	t.Run("refuses email linked elsewhere", func(t *testing.T) {
		_, err := env.svc.ProvisionProviderProfile(ctx, auth.Identity{ID: "user_other", Email: "new@example.com"})
		assert.ErrorContains(t, err, "linked to another identity")
	})

	t.Run("needs email to create", func(t *testing.T) {
		_, err := env.svc.ProvisionProviderProfile(ctx, auth.Identity{ID: "user_noemail"})
		assert.Error(t, err)
	})
}

func TestSyncAndDisableProviderUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.SyncProviderUser(ctx, ProviderUser{
		Identity:  auth.Identity{ID: "user_sync", Email: "sync@example.com", Name: "Sync", Metadata: map[string]any{"role": "member"}},
		AvatarURL: "https://img.example.com/a.png",
	})
	require.NoError(t, err)
	require.NotNil(t, created.AvatarURL)

	updated, err := env.svc.SyncProviderUser(ctx, ProviderUser{
		Identity: auth.Identity{ID: "user_sync", Email: "sync@example.com", Name: "Renamed", Metadata: map[string]any{"role": "admin"}},
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	stored, err := env.profiles.GetBySubject(ctx, "user_sync")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.Nil(t, stored.AvatarURL)
	assert.Equal(t, "admin", stored.Metadata["role"])

	_, _, err = env.svc.CreateDBSession(ctx, stored.ID, "", "")
	require.NoError(t, err)

	disabled, err := env.svc.DisableProviderUser(ctx, "user_sync")
	require.NoError(t, err)
	assert.True(t, disabled.Disabled())

	sessions, _, err := env.sessions.ListByProfile(ctx, stored.ID, pagination.New(1, 10))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Revoked)

	_, err = env.svc.ProvisionProviderProfile(ctx, auth.Identity{ID: "user_sync", Email: "sync@example.com"})
	assert.ErrorIs(t, err, ErrProfileDisabled)

	again, err := env.svc.DisableProviderUser(ctx, "user_sync")
	require.NoError(t, err, "disabling twice is a no-op")
	assert.Equal(t, disabled.ID, again.ID)

	_, err = env.svc.DisableProviderUser(ctx, "user_unknown")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	reenabled, err := env.svc.SyncProviderUser(ctx, ProviderUser{Identity: auth.Identity{ID: "user_sync", Email: "sync@example.com"}})
	require.NoError(t, err)
	assert.False(t, reenabled.Disabled())
	assert.Equal(t, "Renamed", reenabled.Name, "an empty name keeps the stored one")
}

func TestSetRoleAndListAdmins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	member := env.createProfile(t, "member@example.com", nil)
	flagged := env.createProfile(t, "flagged@example.com", models.JSONMap{"isAdmin": true, "adminPermissions": []any{"users"}})
	env.createProfile(t, "boss@example.com", nil)

	admins, err := env.svc.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	_, err = env.svc.SetRole(ctx, member.ID, "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)

	promoted, err := env.svc.SetRole(ctx, member.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin", promoted.Metadata["role"])

	demoted, err := env.svc.SetRole(ctx, flagged.ID, RoleMember)
	require.NoError(t, err)
	assert.NotContains(t, demoted.Metadata, "isAdmin")
	assert.NotContains(t, demoted.Metadata, "adminPermissions")

	admins, err = env.svc.ListAdmins(ctx)
	require.NoError(t, err)
	emails := []string{}
	for _, a := range admins {
		emails = append(emails, a.Profile.Email)
	}
	assert.ElementsMatch(t, []string{"member@example.com", "boss@example.com"}, emails)

	_, err = env.svc.SetRole(ctx, "00000000-0000-0000-0000-000000000000", RoleAdmin)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListProfiles_Filter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		env.createProfile(t, email, models.JSONMap{"role": "member"})
	}
	env.createProfile(t, "ops@example.com", models.JSONMap{"role": "admin"})

	views, total, err := env.svc.ListProfiles(ctx, "", pagination.New(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, views, 2)

	views, total, err = env.svc.ListProfiles(ctx, `role == "member"`, pagination.New(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, views, 1)

	views, total, err = env.svc.ListProfiles(ctx, `isAdmin == true`, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "ops@example.com", views[0].Profile.Email)
	assert.True(t, views[0].Admin.AllPermissions)

	_, _, err = env.svc.ListProfiles(ctx, `role ==`, pagination.New(1, 10))
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		views, total, err = env.svc.ListProfiles(ctx, `role == "member"`, pagination.New(math.MaxInt, 100))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, views)
}

func TestInvalidateSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createProfile(t, "owner@example.com", nil)
	other := env.createProfile(t, "other@example.com", nil)

	s1, _, err := env.svc.CreateDBSession(ctx, owner.ID, "", "")
	require.NoError(t, err)
	_, _, err = env.svc.CreateDBSession(ctx, owner.ID, "", "")
	require.NoError(t, err)
	foreign, _, err := env.svc.CreateDBSession(ctx, other.ID, "", "")
	require.NoError(t, err)

	n, err := env.svc.InvalidateSessions(ctx, owner.ID, []string{s1.ID, foreign.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "sessions of other profiles are ignored")

	n, err = env.svc.InvalidateSessions(ctx, owner.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sessions, total, err := env.svc.ListSessions(ctx, owner.ID, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, s := range sessions {
		assert.True(t, s.Revoked)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProfile(t, "me@example.com", nil)

	name, avatar := "  New Name ", "https://cdn.example.com/a.png"
	updated, err := env.svc.UpdateProfile(ctx, p.ID, ProfilePatch{Name: &name, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	require.NotNil(t, updated.AvatarURL)
	assert.Equal(t, avatar, *updated.AvatarURL)
}
