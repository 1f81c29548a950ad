package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/db/dbtest"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/ratelimit"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/services/iam"
	"github.com/zignal/zignalapi/internal/services/market"
	"github.com/zignal/zignalapi/internal/services/payment"
	"github.com/zignal/zignalapi/internal/session"
	"github.com/zignal/zignalapi/internal/validation"
)

const (
	testJWTSecret     = "0123456789abcdef0123456789abcdef"
	testWebhookSecret = "whsec-test"
	// whsec_ form of "zignal-identity-key"
	testIdentitySecret = "whsec_emlnbmFsLWlkZW50aXR5LWtleQ=="
	testSubjectHeader = "X-Test-Subject"
)

// headerSource authenticates provider-style principals from a test header.
// The principal has no profile, like a provider user who never signed in
// through the provider login.
type headerSource struct{}

func (headerSource) Name() string { return iam.SourceProvider }

func (headerSource) Authenticate(_ context.Context, req iam.AuthRequest) (*iam.Principal, error) {
	subject := req.Headers.Get(testSubjectHeader)
	if subject == "" {
		return nil, nil
	}
	return &iam.Principal{Subject: subject, Email: subject + "@provider.test", Source: iam.SourceProvider}, nil
}

type stubMarket struct {
	series *market.PriceSeries
	err    error
}

func (s *stubMarket) Prices(context.Context) (*market.PriceSeries, error) { return s.series, s.err }

func (s *stubMarket) Bitcoin(context.Context) (*market.CoinSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &market.CoinSummary{Symbol: "BTC/USD", CurrentPrice: 65000}, nil
}

type testServer struct {
	router   chi.Router
	cfg      *config.Config
	iam      iam.Service
	profiles *repository.BunProfileRepository
	payments *repository.BunPaymentRepository
	market   *stubMarket
	repos    Repositories
	packages *repository.BunPackageRepository
}

// newTestServer builds the router over a fresh database. configure runs on
// the config before the router is assembled.
func newTestServer(t *testing.T, configure ...func(*config.Config)) *testServer {
	t.Helper()
	db := dbtest.New(t)

	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)

	cfg := &config.Config{
		SiteURL: "https://app.zignal.test",
		Session: config.SessionConfig{
			Sources: []string{iam.SourceCustom, iam.SourceDatabase},
			TTL:     time.Hour,
		},
		Admin:                config.AdminConfig{Emails: []string{"boss@example.com"}, EmailPattern: "admin"},
		Features:             config.FeatureFlags{LocalLogin: true},
		PaymentWebhookSecret:  testWebhookSecret,
		IdentityWebhookSecret: testIdentitySecret,
	}
	for _, fn := range configure {
		fn(cfg)
	}

	profiles := repository.NewBunProfileRepository(db)
	sessions := repository.NewBunSessionRepository(db)
	manager := session.NewManager(session.NewMemoryStore(time.Hour), testJWTSecret, time.Hour)

	svc, err := iam.NewIAMService(iam.IAMServiceDependencies{
		Profiles:       profiles,
		Sessions:       sessions,
		SessionManager: manager,
		Enforcer:       enforcer,
		Authenticators: []iam.Authenticator{
			iam.NewCustomSessionAuthenticator(manager, profiles),
			iam.NewSessionAuthenticator(profiles, sessions),
			headerSource{},
		},
	}, iam.IAMServiceConfig{Config: cfg})
	require.NoError(t, err)

	validator, err := validation.NewSchemaValidator(32)
	require.NoError(t, err)

	ts := &testServer{
		cfg:      cfg,
		iam:      svc,
		profiles: profiles,
		payments: repository.NewBunPaymentRepository(db),
		packages: repository.NewBunPackageRepository(db),
		market:   &stubMarket{series: &market.PriceSeries{Prices: []market.PricePoint{{T: "1", Close: 1}}}},
		repos: Repositories{
			Notifications: repository.NewBunNotificationRepository(db),
			News:          repository.NewBunNewsRepository(db),
			Transactions:  repository.NewBunTransactionRepository(db),
			Signals:       repository.NewBunSignalRepository(db),
			Trades:        repository.NewBunTradeRepository(db),
		},
	}
	ts.repos.Packages = ts.packages

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.NewMemoryStore(cfg.RateLimit.MaxWindow()))
	}

	ts.router = NewRouter(RouterOptions{
		Cfg:         cfg,
		IAMService:  svc,
		Payments:    payment.NewService(ts.payments, cfg.SiteURL),
		Market:      ts.market,
		Repos:       ts.repos,
		RateLimiter: limiter,
		Validator:   validator,
		DB:          db,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Version:     "test",
	})
	return ts
}

// user creates a profile and returns a database session cookie for it.
func (ts *testServer) user(t *testing.T, email string, metadata models.JSONMap) (*models.Profile, *http.Cookie) {
	t.Helper()
	ctx := context.Background()

	profile, err := ts.iam.CreateProfile(ctx, iam.CreateProfileRequest{Email: email, Name: "Test User", Password: "correct-horse"})
	require.NoError(t, err)
	if metadata != nil {
		require.NoError(t, ts.profiles.SetMetadata(ctx, profile.ID, metadata))
	}

	_, token, err := ts.iam.CreateDBSession(ctx, profile.ID, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	return profile, &http.Cookie{Name: iam.DBSessionCookieName, Value: token}
}

type response struct {
	Status  int
	Header  http.Header
	Cookies []*http.Cookie
	Body    map[string]any
}

func (r response) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

func (ts *testServer) do(t *testing.T, method, path string, body any, mutators ...func(*http.Request)) response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutators {
		m(req)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	res := response{Status: rec.Code, Header: rec.Header(), Cookies: rec.Result().Cookies()}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.Body), rec.Body.String())
	}
	return res
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withHeader(key, value string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

var errUpstream = errors.New("upstream down")
