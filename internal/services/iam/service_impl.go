package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/session"
	"github.com/zignal/zignalapi/internal/telemetry"
)

const tracerName = "zignalapi/services/iam"

// dummyHash keeps Login timing similar for unknown emails.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("zignal-dummy-password"), bcrypt.DefaultCost)

// iamService implements the Service interface.
type iamService struct {
	profiles repository.ProfileRepository
	sessions repository.SessionRepository
	manager  *session.Manager
	enforcer casbin.IEnforcer

	policy     auth.AdminPolicy
	sessionTTL time.Duration

	authenticators []Authenticator
}

// IAMServiceDependencies contains all dependencies for IAM service construction.
type IAMServiceDependencies struct {
	Profiles       repository.ProfileRepository
	Sessions       repository.SessionRepository
	SessionManager *session.Manager
	Enforcer       casbin.IEnforcer
	// Authenticators replaces the sources built from configuration when set.
	Authenticators []Authenticator
}

// IAMServiceConfig contains configuration for IAM service construction.
type IAMServiceConfig struct {
	Config *config.Config
}

// NewIAMService creates the IAM service and its session sources, in the
// order given by SESSION_SOURCES.
func NewIAMService(deps IAMServiceDependencies, cfg IAMServiceConfig) (Service, error) {
	if deps.Enforcer == nil {
		return nil, fmt.Errorf("casbin enforcer is required")
	}

	svc := &iamService{
		profiles:   deps.Profiles,
		sessions:   deps.Sessions,
		manager:    deps.SessionManager,
		enforcer:   deps.Enforcer,
		sessionTTL: SessionTTL,
	}
	if cfg.Config != nil {
		svc.policy = auth.AdminPolicy{
			AllowedEmails: cfg.Config.Admin.Emails,
			EmailPattern:  cfg.Config.Admin.EmailPattern,
		}
		if cfg.Config.Session.TTL > 0 {
			svc.sessionTTL = cfg.Config.Session.TTL
		}
	}

	if deps.Authenticators != nil {
		svc.authenticators = deps.Authenticators
		return svc, nil
	}

	authenticators, err := initializeAuthenticators(cfg.Config, deps)
	if err != nil {
		return nil, fmt.Errorf("initialize authenticators: %w", err)
	}
	svc.authenticators = authenticators

	return svc, nil
}

// initializeAuthenticators builds the sources named in cfg.Session.Sources.
// An unconfigured provider source is skipped with a warning.
func initializeAuthenticators(cfg *config.Config, deps IAMServiceDependencies) ([]Authenticator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	var authenticators []Authenticator
	for _, name := range cfg.Session.Sources {
		switch name {
		case SourceCustom:
			if deps.SessionManager == nil {
				return nil, fmt.Errorf("custom session source requires a session manager")
			}
			authenticators = append(authenticators, NewCustomSessionAuthenticator(deps.SessionManager, deps.Profiles))
		case SourceDatabase:
			authenticators = append(authenticators, NewSessionAuthenticator(deps.Profiles, deps.Sessions))
		case SourceProvider:
			providerAuth, err := NewProviderAuthenticator(cfg.Provider, deps.Profiles)
			if err != nil {
				return nil, fmt.Errorf("create provider authenticator: %w", err)
			}
			if providerAuth == nil {
				slog.Warn("session source skipped", "source", SourceProvider, "reason", "PROVIDER_ISSUER not set")
				continue
			}
			authenticators = append(authenticators, providerAuth)
		default:
			return nil, fmt.Errorf("unknown session source %q", name)
		}
	}

	if len(authenticators) == 0 {
		return nil, fmt.Errorf("no session sources available")
	}
	return authenticators, nil
}

// =========================================================================
// Authentication (Request Path)
// =========================================================================

func (s *iamService) AuthenticateRequest(ctx context.Context, req AuthRequest) (*Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.AuthenticateRequest",
		attribute.Int("authenticator_count", len(s.authenticators)),
	)
	defer span.End()

	for _, authenticator := range s.authenticators {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		name := authenticator.Name()
		principal, err := authenticator.Authenticate(ctx, req)
		if err != nil {
			slog.WarnContext(ctx, "session source rejected credentials", "source", name, "reason", err.Error())
			telemetry.RecordSessionResolution(name, telemetry.OutcomeRejected)
			telemetry.AddEvent(span, "authentication.rejected",
				attribute.String(telemetry.AttrSessionSource, name),
				attribute.String("error", err.Error()),
			)
			continue
		}
		if principal == nil {
			telemetry.RecordSessionResolution(name, telemetry.OutcomeNoCredentials)
			continue
		}

		telemetry.RecordSessionResolution(name, telemetry.OutcomeAuthenticated)
		span.SetAttributes(
			attribute.String(telemetry.AttrPrincipalID, principal.Subject),
			attribute.String(telemetry.AttrSessionSource, name),
		)
		return principal, nil
	}

	telemetry.AddEvent(span, "authentication.no_credentials")
	return nil, nil
}

func (s *iamService) SourceNames() []string {
	names := make([]string, 0, len(s.authenticators))
	for _, a := range s.authenticators {
		names = append(names, a.Name())
	}
	return names
}

// =========================================================================
// Authorization (Request Path - Read-Only)
// =========================================================================

func (s *iamService) AdminView(identity auth.Identity) auth.AdminView {
	return auth.EvaluateAdmin(identity, s.policy)
}

func (s *iamService) Authorize(ctx context.Context, view auth.AdminView, obj, act string) (bool, error) {
	_, span := telemetry.StartSpan(ctx, tracerName, "iam.Authorize",
		attribute.String(telemetry.AttrPolicyResource, obj),
		attribute.String(telemetry.AttrPolicyAction, act),
	)
	defer span.End()

	allowed, err := AuthorizeCapabilities(s.enforcer, view, obj, act)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrPolicyAllowed, allowed))
	return allowed, nil
}

// =========================================================================
// Session Management
// =========================================================================

func (s *iamService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	profile, err := s.profiles.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.PasswordHash == nil || *profile.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*profile.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if profile.Disabled() {
		return nil, ErrProfileDisabled
	}

	result := &LoginResult{Profile: profile}

	if s.manager != nil {
		token, rec, err := s.manager.Issue(ctx, profile.ID, req.UserAgent, req.IP)
		if err != nil {
			return nil, fmt.Errorf("issue custom session: %w", err)
		}
		result.CustomToken, result.CustomSession = token, rec
	}

	dbSession, dbToken, err := s.CreateDBSession(ctx, profile.ID, req.UserAgent, req.IP)
	if err != nil {
		return nil, err
	}
	result.DBToken, result.DBSession = dbToken, dbSession

	if err := s.profiles.UpdateLastLogin(ctx, profile.ID); err != nil {
		slog.WarnContext(ctx, "update last login", "profile_id", profile.ID, "error", err)
	}

	return result, nil
}

func (s *iamService) CreateDBSession(ctx context.Context, profileID, userAgent, ip string) (*models.Session, string, error) {
	token, tokenHash, err := auth.GenerateBearerToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate session token: %w", err)
	}

	sess := &models.Session{
		ProfileID: profileID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
		UserAgent: optional(userAgent),
		IPAddress: optional(ip),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}
	return sess, token, nil
}

func (s *iamService) Logout(ctx context.Context, req AuthRequest) {
	if token := req.Cookie(session.CookieName); token != "" && s.manager != nil {
		if err := s.manager.Revoke(ctx, token); err != nil {
			slog.WarnContext(ctx, "logout: revoke custom session", "error", err)
		}
	}

	if token := req.Cookie(DBSessionCookieName); token != "" {
		sess, err := s.sessions.GetByTokenHash(ctx, auth.HashBearerToken(token))
		switch {
		case err != nil:
			slog.WarnContext(ctx, "logout: load database session", "error", err)
		case !sess.Revoked:
			if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
				slog.WarnContext(ctx, "logout: revoke database session", "session_id", sess.ID, "error", err)
			}
		}
	}
}

func (s *iamService) ListSessions(ctx context.Context, profileID string, page pagination.Params) ([]models.Session, int, error) {
	return s.sessions.ListByProfile(ctx, profileID, page)
}

func (s *iamService) InvalidateSessions(ctx context.Context, profileID string, ids []string) (int64, error) {
	return s.sessions.RevokeForProfile(ctx, profileID, ids)
}

// =========================================================================
// Profiles
// =========================================================================

func (s *iamService) ProvisionProviderProfile(ctx context.Context, identity auth.Identity) (*models.Profile, error) {
	profile, err := s.providerProfile(ctx, identity)
	if err != nil {
		return nil, err
	}

	if profile.Disabled() {
		return nil, ErrProfileDisabled
	}

	if identity.Metadata != nil {
		if err := s.profiles.SetMetadata(ctx, profile.ID, models.JSONMap(identity.Metadata)); err != nil {
			return nil, fmt.Errorf("mirror metadata: %w", err)
		}
		profile.Metadata = models.JSONMap(identity.Metadata)
	}
	if err := s.profiles.UpdateLastLogin(ctx, profile.ID); err != nil {
		slog.WarnContext(ctx, "update last login", "profile_id", profile.ID, "error", err)
	}

	return profile, nil
}

// providerProfile finds the profile bound to identity's subject, links an
// unbound profile with the same email, or creates one.
func (s *iamService) providerProfile(ctx context.Context, identity auth.Identity) (*models.Profile, error) {
	if identity.ID == "" {
		return nil, fmt.Errorf("identity subject is required")
	}

	profile, err := s.profiles.GetBySubject(ctx, identity.ID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound) && identity.Email != "":
		profile, err = s.profiles.GetByEmail(ctx, identity.Email)
		switch {
		case err == nil:
			if profile.Subject != nil && *profile.Subject != identity.ID {
				return nil, fmt.Errorf("email %s is linked to another identity", identity.Email)
			}
			if err := s.profiles.LinkSubject(ctx, profile.ID, identity.ID); err != nil {
				return nil, fmt.Errorf("link profile: %w", err)
			}
			subject := identity.ID
			profile.Subject = &subject
		case errors.Is(err, repository.ErrNotFound):
			profile, err = s.createProviderProfile(ctx, identity)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("load profile by email: %w", err)
		}
	case errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("identity %s has no email to provision a profile", identity.ID)
	default:
		return nil, fmt.Errorf("load profile by subject: %w", err)
	}
	return profile, nil
}

func (s *iamService) SyncProviderUser(ctx context.Context, user ProviderUser) (*models.Profile, error) {
	profile, err := s.providerProfile(ctx, user.Identity)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(user.Identity.Name); name != "" {
		profile.Name = name
	}
	profile.AvatarURL = optional(strings.TrimSpace(user.AvatarURL))
	if user.Identity.Metadata != nil {
		profile.Metadata = models.JSONMap(user.Identity.Metadata)
	}
	profile.DisabledAt = nil

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("sync profile: %w", err)
	}
	slog.InfoContext(ctx, "synced provider user", "profile_id", profile.ID, "subject", user.Identity.ID)
	return profile, nil
}

func (s *iamService) DisableProviderUser(ctx context.Context, subject string) (*models.Profile, error) {
	profile, err := s.profiles.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if profile.Disabled() {
		return profile, nil
	}

	now := time.Now().UTC()
	profile.DisabledAt = &now
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("disable profile: %w", err)
	}
	revoked, err := s.sessions.RevokeForProfile(ctx, profile.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("revoke sessions: %w", err)
	}
	slog.InfoContext(ctx, "disabled provider user", "profile_id", profile.ID, "subject", subject, "revoked_sessions", revoked)
	return profile, nil
}

func (s *iamService) createProviderProfile(ctx context.Context, identity auth.Identity) (*models.Profile, error) {
	subject := identity.ID
	profile := &models.Profile{
		Subject:  &subject,
		Email:    identity.Email,
		Name:     identity.Name,
		Metadata: models.JSONMap(identity.Metadata),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	slog.InfoContext(ctx, "provisioned profile", "profile_id", profile.ID, "subject", subject)
	return profile, nil
}

func (s *iamService) CreateProfile(ctx context.Context, req CreateProfileRequest) (*models.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	role := req.Role
	if role == "" {
		role = RoleMember
	}
	if role != RoleAdmin && role != RoleMember {
		return nil, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	passwordHash := string(hash)

	profile := &models.Profile{
		Email:        email,
		Name:         req.Name,
		PasswordHash: &passwordHash,
		Metadata:     models.JSONMap{auth.MetadataRole: role},
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *iamService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

func (s *iamService) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.profiles.GetByEmail(ctx, email)
}

func (s *iamService) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		profile.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.AvatarURL != nil {
		profile.AvatarURL = optional(strings.TrimSpace(*patch.AvatarURL))
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *iamService) SetRole(ctx context.Context, profileID, role string) (*models.Profile, error) {
	if role != RoleAdmin && role != RoleMember {
		return nil, ErrInvalidRole
	}

	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	metadata := models.JSONMap{}
	for k, v := range profile.Metadata {
		metadata[k] = v
	}
	metadata[auth.MetadataRole] = role
	if role == RoleMember {
		delete(metadata, auth.MetadataIsAdmin)
		delete(metadata, auth.MetadataAdminPermissions)
	}

	if err := s.profiles.SetMetadata(ctx, profile.ID, metadata); err != nil {
		return nil, err
	}
	profile.Metadata = metadata
	return profile, nil
}

func (s *iamService) ListProfiles(ctx context.Context, filter string, page pagination.Params) ([]ProfileView, int, error) {
	evaluator, err := auth.CompileFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	if evaluator == nil {
		profiles, total, err := s.profiles.List(ctx, page)
		if err != nil {
			return nil, 0, err
		}
		return s.views(profiles), total, nil
	}

	all, err := s.profiles.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matched []ProfileView
	for _, v := range s.views(all) {
		doc := auth.FilterDocument(IdentityOf(v.Profile), v.Admin, v.Profile.Disabled())
		if auth.MatchFilter(evaluator, doc) {
			matched = append(matched, v)
		}
	}

	total := len(matched)
	start := min(max(page.Offset(), 0), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

func (s *iamService) ListAdmins(ctx context.Context) ([]ProfileView, error) {
	all, err := s.profiles.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	admins := []ProfileView{}
	for _, v := range s.views(all) {
		if v.Admin.IsAdmin {
			admins = append(admins, v)
		}
	}
	return admins, nil
}

func (s *iamService) views(profiles []models.Profile) []ProfileView {
	views := make([]ProfileView, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		views = append(views, ProfileView{Profile: p, Admin: s.AdminView(IdentityOf(p))})
	}
	return views
}

// IdentityOf returns the admin gate input for a stored profile.
func IdentityOf(p *models.Profile) auth.Identity {
	return auth.Identity{ID: p.ID, Email: p.Email, Name: p.Name, Metadata: map[string]any(p.Metadata)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
