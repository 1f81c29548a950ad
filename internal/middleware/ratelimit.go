package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/ratelimit"
	"github.com/zignal/zignalapi/internal/telemetry"
)

// RateLimitPolicy names a rule and the clients it never applies to.
type RateLimitPolicy struct {
	Scope string
	Rule  ratelimit.Rule
	// ExemptIPs are client addresses that skip the check.
	ExemptIPs []string
}

// RateLimit counts requests per principal, or per client IP before a session
// is resolved. Store failures let the request through.
func RateLimit(limiter *ratelimit.Limiter, policy RateLimitPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || !policy.Rule.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)
			if slices.Contains(policy.ExemptIPs, ip) {
				next.ServeHTTP(w, r)
				return
			}

			key := policy.Scope + ":ip:" + ip
			if p, ok := auth.GetUserFromContext(ctx); ok {
				key = policy.Scope + ":user:" + p.Identity().ID
			}

			d, err := limiter.Allow(ctx, key, policy.Rule)
			if err != nil {
				telemetry.RecordRateLimit(policy.Scope, telemetry.RateLimitError)
				slog.WarnContext(ctx, "rate limit check failed", "scope", policy.Scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				telemetry.RecordRateLimit(policy.Scope, telemetry.RateLimitLimited)
				slog.InfoContext(ctx, "rate limited", "scope", policy.Scope, "key", key, "path", r.URL.Path)
				h.Set("Retry-After", strconv.Itoa(int(d.RetryAfter(time.Now())/time.Second)))
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}

			telemetry.RecordRateLimit(policy.Scope, telemetry.RateLimitAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads the address chi's RealIP middleware left in RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
