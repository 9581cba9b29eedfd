package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/erp/inventory-ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Idempotency store kinds accepted by config.EventConfig.IdempotencyStore
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// IdempotencyStoreFactory creates idempotency stores based on configuration
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithPingTimeout bounds the Redis connectivity check
func WithPingTimeout(d time.Duration) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.pingTimeout = d
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the store named by kind. An empty kind means memory.
func (f *IdempotencyStoreFactory) Create(ctx context.Context, kind string) (shared.IdempotencyStore, error) {
	switch kind {
	case "", StoreMemory:
		f.logger.Info("using in-memory idempotency store")
		return f.CreateInMemoryStore(), nil
	case StoreRedis:
		return f.createRedisOrFallback(ctx)
	default:
		return nil, fmt.Errorf("unknown idempotency store %q", kind)
	}
}

// CreateRedisStore connects to Redis and returns a store backed by it
func (f *IdempotencyStoreFactory) CreateRedisStore(ctx context.Context) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", f.redisConfig.Addr(), err)
	}
	return NewRedisIdempotencyStore(client, ""), nil
}

// CreateInMemoryStore creates an in-memory idempotency store.
// It does not share state across processes, so two server instances may
// both apply a redelivered event.
func (f *IdempotencyStoreFactory) CreateInMemoryStore() *InMemoryIdempotencyStore {
	return NewInMemoryIdempotencyStore()
}

func (f *IdempotencyStoreFactory) createRedisOrFallback(ctx context.Context) (shared.IdempotencyStore, error) {
	store, err := f.CreateRedisStore(ctx)
	if err == nil {
		f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.String("addr", f.redisConfig.Addr()),
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
