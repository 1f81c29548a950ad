package cmdutil

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/ratelimit"
	"github.com/zignal/zignalapi/internal/session"
)

// NewRateLimiter builds the limiter selected by RATE_LIMIT_STORE. It is nil
// when rate limiting is disabled. The redis store reuses shared when set and
// otherwise dials REDIS_URL; a client it dialed itself is returned so the
// caller can close it.
func NewRateLimiter(ctx context.Context, cfg *config.Config, shared *redis.Client) (*ratelimit.Limiter, *redis.Client, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil, nil
	}
	if cfg.RateLimit.Store != "redis" {
		return ratelimit.New(ratelimit.NewMemoryStore(cfg.RateLimit.MaxWindow())), nil, nil
	}
	if shared != nil {
		return ratelimit.New(ratelimit.NewRedisStore(shared)), nil, nil
	}
	client, err := session.NewRedisClient(ctx, cfg.Session.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limit store: %w", err)
	}
	return ratelimit.New(ratelimit.NewRedisStore(client)), client, nil
}
