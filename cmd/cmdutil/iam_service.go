package cmdutil

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/db/bunx"
	"github.com/zignal/zignalapi/internal/ratelimit"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/services/iam"
	"github.com/zignal/zignalapi/internal/session"
)

// IAMServiceBundle bundles the service with the connections it was built on so
// callers can reuse them for other repositories.
type IAMServiceBundle struct {
	Service  iam.Service
	DB       *bun.DB
	Profiles repository.ProfileRepository
	Sessions *repository.BunSessionRepository
	Manager  *session.Manager
	Limiter  *ratelimit.Limiter

	redis     *redis.Client
	rateRedis *redis.Client
}

// Close releases the database and redis connections.
func (b *IAMServiceBundle) Close() {
	if b == nil {
		return
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.rateRedis != nil {
		_ = b.rateRedis.Close()
	}
	if b.DB != nil {
		bunx.Close(b.DB)
	}
}

// NewSessionStore builds the custom session store selected by SESSION_STORE.
// The returned client is nil for the memory store.
func NewSessionStore(ctx context.Context, cfg *config.Config) (session.Store, *redis.Client, error) {
	switch cfg.Session.Store {
	case "redis":
		client, err := session.NewRedisClient(ctx, cfg.Session.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client), client, nil
	default:
		return session.NewMemoryStore(cfg.Session.TTL), nil, nil
	}
}

// NewIAMServiceBundle centralizes IAM service construction for the server and
// CLI commands. It wires repositories, the session store, Casbin and
// the rate limiter.
func NewIAMServiceBundle(ctx context.Context, cfg *config.Config) (*IAMServiceBundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxOpenConns(cfg.MaxDBConnections))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	enforcer, err := auth.InitEnforcer()
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("failed to initialize casbin enforcer: %w", err)
	}

	store, client, err := NewSessionStore(ctx, cfg)
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	bundle := &IAMServiceBundle{
		DB:       db,
		Profiles: repository.NewBunProfileRepository(db),
		Sessions: repository.NewBunSessionRepository(db),
		Manager:  session.NewManager(store, cfg.Session.JWTSecret, cfg.Session.TTL),
		redis:    client,
	}

	bundle.Service, err = iam.NewIAMService(iam.IAMServiceDependencies{
		Profiles:       bundle.Profiles,
		Sessions:       bundle.Sessions,
		SessionManager: bundle.Manager,
		Enforcer:       enforcer,
	}, iam.IAMServiceConfig{Config: cfg})
	if err != nil {
		bundle.Close()
		return nil, fmt.Errorf("failed to create IAM service: %w", err)
	}

	bundle.Limiter, bundle.rateRedis, err = NewRateLimiter(ctx, cfg, client)
	if err != nil {
		bundle.Close()
		return nil, err
	}

	return bundle, nil
}
