package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every zignal metric plus the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// HTTPRequestsTotal counts requests by method, route pattern and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zignal_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds observes request latency by method and route pattern.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zignal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// SessionResolutionsTotal counts session source outcomes.
	SessionResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zignal_session_resolutions_total",
			Help: "Session resolution attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// MarketCacheTotal counts market-data cache hits and misses.
	MarketCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zignal_market_cache_total",
			Help: "Market data cache lookups by result.",
		},
		[]string{"result"},
	)

	// PaymentStatusUpdatesTotal counts payment status updates by target status
	// and whether the row changed.
	PaymentStatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zignal_payment_status_updates_total",
			Help: "Payment status updates by status and whether a write happened.",
		},
		[]string{"status", "changed"},
	)

	// RateLimitDecisionsTotal counts rate limiter outcomes by scope.
	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zignal_rate_limit_decisions_total",
			Help: "Rate limit checks by scope and outcome.",
		},
		[]string{"scope", "outcome"},
	)
)

// Rate limit outcomes. Store errors let the request through.
const (
	RateLimitAllowed = "allowed"
	RateLimitLimited = "limited"
	RateLimitError   = "error"
)

// Session resolution outcomes.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeNoCredentials = "no_credentials"
	OutcomeRejected      = "rejected"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		SessionResolutionsTotal,
		MarketCacheTotal,
		PaymentStatusUpdatesTotal,
		RateLimitDecisionsTotal,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordHTTPRequest records one completed request.
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordSessionResolution records the outcome of one session source.
func RecordSessionResolution(source, outcome string) {
	SessionResolutionsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordMarketCache records a cache hit or miss.
func RecordMarketCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	MarketCacheTotal.WithLabelValues(result).Inc()
}

// RecordPaymentStatusUpdate records an idempotent status update.
func RecordPaymentStatusUpdate(status string, changed bool) {
	PaymentStatusUpdatesTotal.WithLabelValues(status, strconv.FormatBool(changed)).Inc()
}

// RecordRateLimit records one rate limit check.
func RecordRateLimit(scope, outcome string) {
	RateLimitDecisionsTotal.WithLabelValues(scope, outcome).Inc()
}
