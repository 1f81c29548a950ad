package iam

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/db/dbtest"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/session"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	profiles *repository.BunProfileRepository
	sessions *repository.BunSessionRepository
	manager  *session.Manager
	svc      Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)

	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)

	env := &testEnv{
		profiles: repository.NewBunProfileRepository(db),
		sessions: repository.NewBunSessionRepository(db),
		manager:  session.NewManager(session.NewMemoryStore(time.Hour), testJWTSecret, time.Hour),
	}

	cfg := &config.Config{
		Session: config.SessionConfig{
			Sources: []string{SourceCustom, SourceDatabase, SourceProvider},
			TTL:     time.Hour,
		},
		Admin: config.AdminConfig{Emails: []string{"boss@example.com"}, EmailPattern: "admin"},
	}

	env.svc, err = NewIAMService(IAMServiceDependencies{
		Profiles:       env.profiles,
		Sessions:       env.sessions,
		SessionManager: env.manager,
		Enforcer:       enforcer,
	}, IAMServiceConfig{Config: cfg})
	require.NoError(t, err)
	return env
}

func (e *testEnv) createProfile(t *testing.T, email string, metadata models.JSONMap) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: email, Name: "Test " + email, Metadata: metadata}
	require.NoError(t, e.profiles.Create(context.Background(), p))
	return p
}

func requestWithCookies(cookies ...*http.Cookie) AuthRequest {
	return AuthRequest{Headers: http.Header{}, Cookies: cookies}
}

type stubAuthenticator struct {
	name      string
	principal *Principal
	err       error
	calls     int
}

func (s *stubAuthenticator) Name() string { return s.name }

func (s *stubAuthenticator) Authenticate(context.Context, AuthRequest) (*Principal, error) {
	s.calls++
	return s.principal, s.err
}
