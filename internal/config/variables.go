package config

import "github.com/spf13/viper"

// Session source names accepted in SESSION_SOURCES.
const (
	SourceCustom   = "custom"
	SourceDatabase = "database"
	SourceProvider = "provider"
)

// Viper keys. Config files use these names; environment variables use Env.
const (
	KeyDatabaseURL           = "database_url"
	KeySiteURL               = "site_url"
	KeyJWTSecret             = "jwt_secret"
	KeyServerAddr            = "server_addr"
	KeyMaxDBConnections      = "max_db_connections"
	KeySessionSources        = "session_sources"
	KeySessionStore          = "session_store"
	KeyRedisURL              = "redis_url"
	KeySessionTTL            = "session_ttl"
	KeyProviderIssuer        = "provider_issuer"
	KeyProviderClientID      = "provider_client_id"
	KeyProviderClientSecret  = "provider_client_secret"
	KeyProviderRedirectURI   = "provider_redirect_uri"
	KeyProviderMetadataClaim = "provider_metadata_claim"
	KeySessionCookiePassword = "session_cookie_password"
	KeyAdminEmails           = "admin_emails"
	KeyAdminEmailPattern     = "admin_email_pattern"
	KeyMarketAPIURL          = "market_api_url"
	KeyMarketAPIKey          = "market_api_key"
	KeyMarketTimeout         = "market_timeout"
	KeyMarketCacheTTL        = "market_cache_ttl"
	KeyPaymentWebhookSecret  = "payment_webhook_secret"
	KeyFeatureLocalLogin     = "feature_local_login"
	KeyFeatureProviderLogin  = "feature_provider_login"
	KeyCORSAllowedOrigins    = "cors_allowed_origins"
	KeyLogLevel              = "log_level"
	KeyDebug                 = "debug"
	KeyOTLPEndpoint          = "otel_exporter_otlp_endpoint"
	KeyOTelServiceName       = "otel_service_name"
	KeyJanitorSchedule       = "janitor_schedule"
	KeyIdentityWebhookSecret = "identity_webhook_secret"

	KeyRateLimitEnabled       = "rate_limit_enabled"
	KeyRateLimitStore         = "rate_limit_store"
	KeyRateLimitRequests      = "rate_limit_requests"
	KeyRateLimitWindow        = "rate_limit_window"
	KeyRateLimitLoginRequests = "rate_limit_login_requests"
	KeyRateLimitLoginWindow   = "rate_limit_login_window"
	KeyRateLimitAdminRequests = "rate_limit_admin_requests"
	KeyRateLimitAdminWindow   = "rate_limit_admin_window"
	KeyRateLimitExemptIPs     = "rate_limit_exempt_ips"
)

// Variable describes one configuration variable. The same table drives Load
// and the `env check` report.
type Variable struct {
	Key          string
	Env          string
	Required     bool
	RequiredWhen func(v *viper.Viper) bool
	Secret       bool
	MinLen       int
	ExactLen     int
	Default      string
	Check        func(string) error
	Description  string
}

// Variables lists every supported variable in display order.
var Variables = []Variable{
	{Key: KeyDatabaseURL, Env: "DATABASE_URL", Required: true, Secret: true,
		Description: "Database DSN (postgres:// or SQLite file path)"},
	{Key: KeySiteURL, Env: "SITE_URL", Required: true,
		Description: "Public site URL used for redirects"},
	{Key: KeyJWTSecret, Env: "JWT_SECRET", Required: true, Secret: true, MinLen: 32,
		Description: "HS256 key for custom session tokens"},
	{Key: KeyServerAddr, Env: "SERVER_ADDR", Default: "localhost:8080",
		Description: "HTTP listen address"},
	{Key: KeyMaxDBConnections, Env: "MAX_DB_CONNECTIONS", Default: "25", Check: checkPositiveInt,
		Description: "Database connection pool size"},
	{Key: KeySessionSources, Env: "SESSION_SOURCES", Default: "custom,database,provider", Check: checkSessionSources,
		Description: "Ordered session sources"},
	{Key: KeySessionStore, Env: "SESSION_STORE", Default: "memory", Check: checkOneOf("memory", "redis"),
		Description: "Custom session store backend"},
	{Key: KeyRedisURL, Env: "REDIS_URL", Secret: true,
		RequiredWhen: redisSelected,
		Description:  "Redis URL for the redis session and rate limit stores"},
	{Key: KeySessionTTL, Env: "SESSION_TTL", Default: "168h", Check: checkDuration,
		Description: "Lifetime of custom and database sessions"},
	{Key: KeyProviderIssuer, Env: "PROVIDER_ISSUER",
		Description: "Identity provider issuer URL (enables provider sessions)"},
	{Key: KeyProviderClientID, Env: "PROVIDER_CLIENT_ID",
		RequiredWhen: providerConfigured,
		Description:  "Identity provider client id"},
	{Key: KeyProviderClientSecret, Env: "PROVIDER_CLIENT_SECRET", Secret: true,
		Description: "Identity provider client secret"},
	{Key: KeyProviderRedirectURI, Env: "PROVIDER_REDIRECT_URI",
		Description: "Callback URL registered with the identity provider"},
	{Key: KeyProviderMetadataClaim, Env: "PROVIDER_METADATA_CLAIM", Default: "public_metadata",
		Description: "Token claim carrying role metadata"},
	{Key: KeySessionCookiePassword, Env: "SESSION_COOKIE_PASSWORD", Secret: true, ExactLen: 32,
		RequiredWhen: providerConfigured,
		Description:  "Key for the provider login state cookie"},
	{Key: KeyAdminEmails, Env: "ADMIN_EMAILS",
		Description: "Comma-separated admin email allow-list"},
	{Key: KeyAdminEmailPattern, Env: "ADMIN_EMAIL_PATTERN", Default: "admin",
		Description: "Emails containing this text are admins"},
	{Key: KeyMarketAPIURL, Env: "MARKET_API_URL", Default: "https://api.coingecko.com/api/v3",
		Description: "CoinGecko-compatible market data API"},
	{Key: KeyMarketAPIKey, Env: "MARKET_API_KEY", Secret: true,
		Description: "Market data API key"},
	{Key: KeyMarketTimeout, Env: "MARKET_TIMEOUT", Default: "10s", Check: checkDuration,
		Description: "Market data request timeout"},
	{Key: KeyMarketCacheTTL, Env: "MARKET_CACHE_TTL", Default: "2m", Check: checkDuration,
		Description: "Market data cache lifetime"},
	{Key: KeyPaymentWebhookSecret, Env: "PAYMENT_WEBHOOK_SECRET", Secret: true,
		Description: "Shared secret for payment gateway webhooks"},
	{Key: KeyFeatureLocalLogin, Env: "FEATURE_LOCAL_LOGIN", Default: "false", Check: checkBool,
		Description: "Enable email/password login"},
	{Key: KeyFeatureProviderLogin, Env: "FEATURE_PROVIDER_LOGIN", Default: "true", Check: checkBool,
		Description: "Enable identity provider login routes"},
	{Key: KeyCORSAllowedOrigins, Env: "CORS_ALLOWED_ORIGINS",
		Description: "Comma-separated CORS origins"},
	{Key: KeyLogLevel, Env: "LOG_LEVEL", Default: "info", Check: checkOneOf("debug", "info", "warn", "error"),
		Description: "Log level"},
	{Key: KeyDebug, Env: "DEBUG", Default: "false", Check: checkBool,
		Description: "Force debug logging"},
	{Key: KeyOTLPEndpoint, Env: "OTEL_EXPORTER_OTLP_ENDPOINT",
		Description: "OTLP/HTTP trace endpoint (tracing disabled when empty)"},
	{Key: KeyOTelServiceName, Env: "OTEL_SERVICE_NAME", Default: "zignalapi",
		Description: "Service name reported in traces"},
	{Key: KeyJanitorSchedule, Env: "JANITOR_SCHEDULE", Default: "@every 15m",
		Description: "Cron schedule for expired session cleanup"},
	{Key: KeyIdentityWebhookSecret, Env: "IDENTITY_WEBHOOK_SECRET", Secret: true, Check: checkWebhookSecret,
		Description: "Signing secret (whsec_...) for identity provider user webhooks"},
	{Key: KeyRateLimitEnabled, Env: "RATE_LIMIT_ENABLED", Default: "true", Check: checkBool,
		Description: "Enable request rate limiting"},
	{Key: KeyRateLimitStore, Env: "RATE_LIMIT_STORE", Default: "memory", Check: checkOneOf("memory", "redis"),
		Description: "Rate limit counter backend"},
	{Key: KeyRateLimitRequests, Env: "RATE_LIMIT_REQUESTS", Default: "100", Check: checkPositiveInt,
		Description: "Requests per window on /api"},
	{Key: KeyRateLimitWindow, Env: "RATE_LIMIT_WINDOW", Default: "1m", Check: checkDuration,
		Description: "Window for RATE_LIMIT_REQUESTS"},
	{Key: KeyRateLimitLoginRequests, Env: "RATE_LIMIT_LOGIN_REQUESTS", Default: "5", Check: checkPositiveInt,
		Description: "Login attempts per window"},
	{Key: KeyRateLimitLoginWindow, Env: "RATE_LIMIT_LOGIN_WINDOW", Default: "15m", Check: checkDuration,
		Description: "Window for RATE_LIMIT_LOGIN_REQUESTS"},
	{Key: KeyRateLimitAdminRequests, Env: "RATE_LIMIT_ADMIN_REQUESTS", Default: "1000", Check: checkPositiveInt,
		Description: "Requests per window on /api/admin"},
	{Key: KeyRateLimitAdminWindow, Env: "RATE_LIMIT_ADMIN_WINDOW", Default: "5m", Check: checkDuration,
		Description: "Window for RATE_LIMIT_ADMIN_REQUESTS"},
	{Key: KeyRateLimitExemptIPs, Env: "RATE_LIMIT_EXEMPT_IPS",
		Description: "Comma-separated client IPs that are never rate limited"},
}

func redisSelected(v *viper.Viper) bool {
	return v.GetString(KeySessionStore) == "redis" ||
		(v.GetBool(KeyRateLimitEnabled) && v.GetString(KeyRateLimitStore) == "redis")
}

func providerConfigured(v *viper.Viper) bool {
	return v.GetString(KeyProviderIssuer) != ""
}
