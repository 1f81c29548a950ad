package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/config"
	zgmiddleware "github.com/zignal/zignalapi/internal/middleware"
	"github.com/zignal/zignalapi/internal/ratelimit"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/services/iam"
	"github.com/zignal/zignalapi/internal/services/market"
	"github.com/zignal/zignalapi/internal/services/payment"
	"github.com/zignal/zignalapi/internal/services/usersync"
	"github.com/zignal/zignalapi/internal/telemetry"
	"github.com/zignal/zignalapi/internal/validation"
)

// MarketData is the market client surface the handlers use.
type MarketData interface {
	Prices(ctx context.Context) (*market.PriceSeries, error)
	Bitcoin(ctx context.Context) (*market.CoinSummary, error)
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Repositories groups the table repositories read directly by handlers.
type Repositories struct {
	Notifications repository.NotificationRepository
	News          repository.NewsRepository
	Transactions  repository.TransactionRepository
	Signals       repository.SignalRepository
	Trades        repository.TradeRepository
	Packages      repository.PackageRepository
}

// RouterOptions controls the construction of the zignal HTTP router.
type RouterOptions struct {
	Cfg          *config.Config
	IAMService   iam.Service
	Payments     *payment.Service
	Market       MarketData
	Repos        Repositories
	RateLimiter  *ratelimit.Limiter
	Validator    *validation.SchemaValidator
	RelyingParty *auth.RelyingParty
	DB           Pinger
	Logger       *slog.Logger
	CORSOptions  *cors.Options
	Version      string
}

// DefaultCORSOptions returns the CORS policy for the configured origins.
func DefaultCORSOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id", webhookSecretHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// handlers carries the dependencies shared by every route handler.
type handlers struct {
	RouterOptions
	secureCookies bool
	userVerifier  *usersync.Verifier
	userSync      *usersync.Syncer
}

// NewRouter assembles the chi router with the shared middleware stack and
// every API route mounted.
func NewRouter(opts RouterOptions) chi.Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handlers{
		RouterOptions: opts,
		secureCookies: opts.Cfg != nil && strings.HasPrefix(opts.Cfg.SiteURL, "https://"),
	}
	if opts.Cfg != nil && opts.Cfg.IdentityWebhookSecret != "" {
		verifier, err := usersync.NewVerifier(opts.Cfg.IdentityWebhookSecret)
		if err != nil {
			opts.Logger.Error("identity webhook disabled", "error", err)
		} else {
			h.userVerifier = verifier
			h.userSync = usersync.NewSyncer(opts.IAMService)
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(zgmiddleware.RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions(nil)
	if opts.Cfg != nil {
		corsCfg = DefaultCORSOptions(opts.Cfg.CORSAllowedOrigins)
	}
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	r.Get("/health", h.health)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(zgmiddleware.SessionMiddleware(opts.IAMService))
		r.Use(h.rateLimit("api", func(c config.RateLimitConfig) config.RateLimitRule { return c.API }))

		h.mountPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(zgmiddleware.RequireAuth)
			h.mountMember(r)
		})

		h.mountAdmin(r)
	})

	return r
}

func (h *handlers) mountPublic(r chi.Router) {
	r.With(h.rateLimit("login", func(c config.RateLimitConfig) config.RateLimitRule { return c.Login })).
		Post("/auth/login", h.login)
	r.Post("/auth/logout", h.logout)

	if h.RelyingParty != nil && (h.Cfg == nil || h.Cfg.Features.ProviderLogin) {
		r.Get("/auth/provider/login", h.RelyingParty.LoginHandler())
		r.Get("/auth/provider/callback", h.RelyingParty.CallbackHandler(h.providerCallback))
	} else {
		h.Logger.Warn("provider login routes disabled")
	}

	r.Get("/news", h.listNews)
	r.Get("/payment-links/{id}", h.getPaymentLink)
	r.Post("/payments/webhook", h.paymentWebhook)
	r.Post("/webhooks/identity", h.identityWebhook)
}

func (h *handlers) mountMember(r chi.Router) {
	r.Get("/auth/session", h.currentSession)
	r.Get("/auth/sessions", h.listSessions)
	r.Post("/auth/sessions/invalidate", h.invalidateSessions)

	r.Get("/profile", h.getProfile)
	r.Patch("/profile", h.updateProfile)

	r.Get("/withdrawals", h.listTransactionsOfType(transactionWithdrawal))
	r.Post("/withdrawals", h.createWithdrawal)
	r.Get("/deposits", h.listTransactionsOfType(transactionDeposit))
	r.Post("/deposits", h.createDeposit)
	r.Get("/transactions", h.listTransactions)

	r.Get("/signals", h.listSignals)
	r.Get("/trades", h.listTrades)

	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/read-all", h.markAllNotificationsRead)
	r.Post("/notifications/{id}/read", h.markNotificationRead)

	r.Get("/market/bitcoin", h.marketBitcoin)
	r.Get("/market/prices", h.marketPrices)

	r.Post("/upload/avatar", h.notImplemented("Avatar upload"))
}

func (h *handlers) mountAdmin(r chi.Router) {
	gate := func(resource, action string) func(http.Handler) http.Handler {
		return zgmiddleware.RequirePermission(h.IAMService, resource, action)
	}

	r.With(gate(auth.ResourcePaymentLinks, auth.ActionWrite)).Post("/payments/links", h.createPaymentLink)
	r.With(gate(auth.ResourcePayments, auth.ActionWrite)).Post("/payments/status", h.updatePaymentStatus)
	r.With(gate(auth.ResourcePaymentsAnalytics, auth.ActionRead)).Get("/analytics/payments", h.paymentAnalytics)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.rateLimit("admin", func(c config.RateLimitConfig) config.RateLimitRule { return c.Admin }))

		r.With(gate(auth.ResourcePayments, auth.ActionRead)).Get("/payments", h.adminListPayments)

		r.With(gate(auth.ResourceAdminUsers, auth.ActionRead)).Get("/users", h.adminListUsers)
		r.With(gate(auth.ResourceAdminUsers, auth.ActionRead)).Get("/list-admins", h.adminListAdmins)
		r.With(gate(auth.ResourceAdminUsers, auth.ActionWrite)).Post("/assign-role", h.adminAssignRole)

		r.With(gate(auth.ResourceAdminSignals, auth.ActionRead)).Get("/signals", h.adminListSignals)
		r.With(gate(auth.ResourceAdminSignals, auth.ActionWrite)).Post("/signals", h.adminCreateSignal)

		r.Group(func(r chi.Router) {
			r.Use(gate(auth.ResourceAdminSystem, auth.ActionRead))
			r.Get("/health", h.adminHealth)
			r.Get("/packages", h.adminListPackages)
			r.Get("/security/alerts", h.notImplemented("Security alerts"))
			r.Get("/security/events", h.notImplemented("Security events"))
		})
	})
}

// rateLimit applies the configured rule for scope. Without a limiter or
// with rate limiting switched off it passes requests through.
func (h *handlers) rateLimit(scope string, rule func(config.RateLimitConfig) config.RateLimitRule) func(http.Handler) http.Handler {
	policy := zgmiddleware.RateLimitPolicy{Scope: scope}
	limiter := h.RateLimiter
	if h.Cfg == nil || !h.Cfg.RateLimit.Enabled {
		limiter = nil
	} else {
		r := rule(h.Cfg.RateLimit)
		policy.Rule = ratelimit.Rule{Requests: r.Requests, Window: r.Window}
		policy.ExemptIPs = h.Cfg.RateLimit.ExemptIPs
	}
	return zgmiddleware.RateLimit(limiter, policy)
}

func (h *handlers) notImplemented(feature string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, NotImplemented(feature))
	}
}
