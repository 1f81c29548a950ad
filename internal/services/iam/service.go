package iam

import (
	"context"
	"errors"
	"time"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
	"github.com/zignal/zignalapi/internal/session"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email, a wrong
	// password, or a profile without local credentials.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrProfileDisabled is returned when a disabled profile tries to sign in.
	ErrProfileDisabled = errors.New("profile is disabled")
	// ErrInvalidRole is returned for roles other than admin and member.
	ErrInvalidRole = errors.New("role must be admin or member")
)

// Roles assignable through the admin API and CLI.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Service provides all identity and access management operations.
type Service interface {
	// =========================================================================
	// Authentication (Request Path)
	// =========================================================================

	// AuthenticateRequest tries the configured session sources in order.
	// Returns the first successful Principal, or nil if none succeed. Source
	// failures are logged and skipped, so the error is reserved for a
	// cancelled context.
	AuthenticateRequest(ctx context.Context, req AuthRequest) (*Principal, error)

	// SourceNames lists the active session sources in resolution order.
	SourceNames() []string

	// =========================================================================
	// Authorization (Request Path - Read-Only)
	// =========================================================================

	// AdminView runs the admin gate for identity using the configured policy.
	AdminView(identity auth.Identity) auth.AdminView

	// Authorize reports whether view grants act on obj.
	Authorize(ctx context.Context, view auth.AdminView, obj, act string) (bool, error)

	// =========================================================================
	// Session Management
	// =========================================================================

	// Login checks local credentials and issues both a custom session and a
	// database session.
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)

	// CreateDBSession stores a new database session and returns the unhashed
	// token for the cookie.
	CreateDBSession(ctx context.Context, profileID, userAgent, ip string) (*models.Session, string, error)

	// Logout revokes whatever sessions req carries. Failures are logged.
	Logout(ctx context.Context, req AuthRequest)

	// ListSessions returns one page of a profile's database sessions.
	ListSessions(ctx context.Context, profileID string, page pagination.Params) ([]models.Session, int, error)

	// InvalidateSessions revokes the given database sessions of a profile, or
	// all of them when ids is empty.
	InvalidateSessions(ctx context.Context, profileID string, ids []string) (int64, error)

	// =========================================================================
	// Profiles
	// =========================================================================

	// ProvisionProviderProfile finds the profile for a provider identity by
	// subject, links one by email, or creates it.
	ProvisionProviderProfile(ctx context.Context, identity auth.Identity) (*models.Profile, error)

	// SyncProviderUser mirrors a provider user record into its profile,
	// provisioning it like ProvisionProviderProfile. A disabled profile is
	// re-enabled.
	SyncProviderUser(ctx context.Context, user ProviderUser) (*models.Profile, error)

	// DisableProviderUser disables the profile bound to subject and revokes
	// its database sessions. Unknown subjects return repository.ErrNotFound.
	DisableProviderUser(ctx context.Context, subject string) (*models.Profile, error)

	// CreateProfile creates a profile with local credentials.
	CreateProfile(ctx context.Context, req CreateProfileRequest) (*models.Profile, error)

	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*models.Profile, error)

	// SetRole records role in the profile metadata. Assigning member also
	// clears the isAdmin and adminPermissions keys.
	SetRole(ctx context.Context, profileID, role string) (*models.Profile, error)

	// ListProfiles pages through profiles, optionally narrowed by a go-bexpr
	// filter over auth.FilterDocument.
	ListProfiles(ctx context.Context, filter string, page pagination.Params) ([]ProfileView, int, error)

	// ListAdmins returns every profile the admin gate accepts.
	ListAdmins(ctx context.Context) ([]ProfileView, error)
}

// LoginRequest carries local credentials and client details.
type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IP        string
}

// LoginResult holds the sessions issued by a successful login.
type LoginResult struct {
	Profile       *models.Profile
	CustomToken   string
	CustomSession *session.Record
	DBToken       string
	DBSession     *models.Session
}

// CreateProfileRequest describes a locally provisioned profile.
type CreateProfileRequest struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// ProviderUser is a user record pushed by the identity provider.
type ProviderUser struct {
	Identity  auth.Identity
	AvatarURL string
}

// ProfilePatch holds the self-service profile fields. Nil leaves a field alone.
type ProfilePatch struct {
	Name      *string
	AvatarURL *string
}

// ProfileView pairs a profile with its derived admin view.
type ProfileView struct {
	Profile *models.Profile
	Admin   auth.AdminView
}

// SessionTTL is the database session lifetime used when none is configured.
const SessionTTL = 7 * 24 * time.Hour
