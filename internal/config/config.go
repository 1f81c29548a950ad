package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Public site URL, used for redirects after provider login
	SiteURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug    bool
	LogLevel string

	Session   SessionConfig
	Provider  ProviderConfig
	Admin     AdminConfig
	Market    MarketConfig
	Features  FeatureFlags
	Telemetry TelemetryConfig

	PaymentWebhookSecret  string
	IdentityWebhookSecret string
	CORSAllowedOrigins    []string
	JanitorSchedule       string

	RateLimit RateLimitConfig
}

// RateLimitRule allows Requests per Window.
type RateLimitRule struct {
	Requests int
	Window   time.Duration
}

// RateLimitConfig controls request rate limiting on /api.
type RateLimitConfig struct {
	Enabled bool
	// memory or redis
	Store     string
	API       RateLimitRule
	Login     RateLimitRule
	Admin     RateLimitRule
	ExemptIPs []string
}

// MaxWindow is the longest window of any rule.
func (c RateLimitConfig) MaxWindow() time.Duration {
	return max(c.API.Window, c.Login.Window, c.Admin.Window)
}

// SessionConfig controls the session sources and the custom session store.
type SessionConfig struct {
	// Ordered list of session sources tried by the resolver
	Sources []string
	// memory or redis
	Store    string
	RedisURL string
	TTL      time.Duration
	// HS256 key for the custom session token
	JWTSecret string
	// Key material for the provider login state/PKCE cookie
	CookiePassword string
}

// ProviderConfig describes the external OIDC identity provider.
// Provider login and the provider session source are disabled when Issuer is empty.
type ProviderConfig struct {
	Issuer        string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	MetadataClaim string
	Scopes        []string
}

// Enabled reports whether an identity provider is configured.
func (p ProviderConfig) Enabled() bool {
	return p.Issuer != ""
}

type AdminConfig struct {
	Emails       []string
	EmailPattern string
}

type MarketConfig struct {
	APIURL   string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type FeatureFlags struct {
	LocalLogin    bool
	ProviderLogin bool
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from the global viper instance (environment
// variables and, when set, the config file bound by the root command).
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v. Every problem found is reported in a
// single error.
func LoadFrom(v *viper.Viper) (*Config, error) {
	bind(v)

	if problems := Validate(v); len(problems) > 0 {
		msgs := make([]string, 0, len(problems))
		for _, p := range problems {
			msgs = append(msgs, p.Error())
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}

	cfg := &Config{
		DatabaseURL:      v.GetString(KeyDatabaseURL),
		ServerAddr:       v.GetString(KeyServerAddr),
		SiteURL:          strings.TrimRight(v.GetString(KeySiteURL), "/"),
		MaxDBConnections: v.GetInt(KeyMaxDBConnections),
		Debug:            v.GetBool(KeyDebug),
		LogLevel:         v.GetString(KeyLogLevel),
		Session: SessionConfig{
			Sources:        splitList(v.GetString(KeySessionSources)),
			Store:          strings.ToLower(v.GetString(KeySessionStore)),
			RedisURL:       v.GetString(KeyRedisURL),
			TTL:            v.GetDuration(KeySessionTTL),
			JWTSecret:      v.GetString(KeyJWTSecret),
			CookiePassword: v.GetString(KeySessionCookiePassword),
		},
		Provider: ProviderConfig{
			Issuer:        v.GetString(KeyProviderIssuer),
			ClientID:      v.GetString(KeyProviderClientID),
			ClientSecret:  v.GetString(KeyProviderClientSecret),
			RedirectURI:   v.GetString(KeyProviderRedirectURI),
			MetadataClaim: v.GetString(KeyProviderMetadataClaim),
			Scopes:        []string{"openid", "profile", "email"},
		},
		Admin: AdminConfig{
			Emails:       splitList(v.GetString(KeyAdminEmails)),
			EmailPattern: v.GetString(KeyAdminEmailPattern),
		},
		Market: MarketConfig{
			APIURL:   strings.TrimRight(v.GetString(KeyMarketAPIURL), "/"),
			APIKey:   v.GetString(KeyMarketAPIKey),
			Timeout:  v.GetDuration(KeyMarketTimeout),
			CacheTTL: v.GetDuration(KeyMarketCacheTTL),
		},
		Features: FeatureFlags{
			LocalLogin:    v.GetBool(KeyFeatureLocalLogin),
			ProviderLogin: v.GetBool(KeyFeatureProviderLogin),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: v.GetString(KeyOTLPEndpoint),
			ServiceName:  v.GetString(KeyOTelServiceName),
		},
		PaymentWebhookSecret:  v.GetString(KeyPaymentWebhookSecret),
		IdentityWebhookSecret: v.GetString(KeyIdentityWebhookSecret),
		CORSAllowedOrigins:    splitList(v.GetString(KeyCORSAllowedOrigins)),
		JanitorSchedule:       v.GetString(KeyJanitorSchedule),
		RateLimit: RateLimitConfig{
			Enabled:   v.GetBool(KeyRateLimitEnabled),
			Store:     strings.ToLower(v.GetString(KeyRateLimitStore)),
			API:       RateLimitRule{Requests: v.GetInt(KeyRateLimitRequests), Window: v.GetDuration(KeyRateLimitWindow)},
			Login:     RateLimitRule{Requests: v.GetInt(KeyRateLimitLoginRequests), Window: v.GetDuration(KeyRateLimitLoginWindow)},
			Admin:     RateLimitRule{Requests: v.GetInt(KeyRateLimitAdminRequests), Window: v.GetDuration(KeyRateLimitAdminWindow)},
			ExemptIPs: splitList(v.GetString(KeyRateLimitExemptIPs)),
		},
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// Validate checks every registered variable against v and returns all problems.
func Validate(v *viper.Viper) []error {
	bind(v)

	var problems []error
	for _, spec := range Variables {
		for _, msg := range validateOne(v, spec) {
			problems = append(problems, fmt.Errorf("%s %s", spec.Env, msg))
		}
	}
	return problems
}

func validateOne(v *viper.Viper, spec Variable) []string {
	val := v.GetString(spec.Key)
	if val == "" {
		if spec.Required || (spec.RequiredWhen != nil && spec.RequiredWhen(v)) {
			return []string{"is required"}
		}
		return nil
	}

	var msgs []string
	if spec.MinLen > 0 && len(val) < spec.MinLen {
		msgs = append(msgs, fmt.Sprintf("must be at least %d characters", spec.MinLen))
	}
	if spec.ExactLen > 0 && len(val) != spec.ExactLen {
		msgs = append(msgs, fmt.Sprintf("must be exactly %d characters", spec.ExactLen))
	}
	if spec.Check != nil {
		if err := spec.Check(val); err != nil {
			msgs = append(msgs, "is invalid: "+err.Error())
		}
	}
	return msgs
}

// bind registers env bindings and defaults for every variable. It is
// idempotent so Load and Validate can both call it.
func bind(v *viper.Viper) {
	for _, spec := range Variables {
		_ = v.BindEnv(spec.Key, spec.Env)
		if spec.Default != "" {
			v.SetDefault(spec.Key, spec.Default)
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func checkDuration(val string) error {
	d, err := time.ParseDuration(val)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func checkOneOf(allowed ...string) func(string) error {
	return func(val string) error {
		for _, a := range allowed {
			if strings.EqualFold(val, a) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func checkBool(val string) error {
	if _, err := strconv.ParseBool(val); err != nil {
		return errors.New("must be a boolean")
	}
	return nil
}

func checkPositiveInt(val string) error {
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return errors.New("must be a positive integer")
	}
	return nil
}

func checkSessionSources(val string) error {
	sources := splitList(val)
	if len(sources) == 0 {
		return errors.New("at least one session source is required")
	}
	for _, s := range sources {
		switch s {
		case SourceCustom, SourceDatabase, SourceProvider:
		default:
			return fmt.Errorf("unknown session source %q", s)
		}
	}
	return nil
}

// checkWebhookSecret accepts a whsec_ prefixed base64 key or a raw secret.
func checkWebhookSecret(val string) error {
	raw, ok := strings.CutPrefix(val, "whsec_")
	if !ok {
		return nil
	}
	if _, err := base64.StdEncoding.DecodeString(raw); err != nil {
		return errors.New("whsec_ secret must be base64")
	}
	return nil
}
