package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rouna/storefront/internal/domain/cart"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Stores bundles the Redis-backed stores the application needs
type Stores struct {
	Client      *redis.Client
	GuestCarts  cart.GuestStore
	Idempotency shared.IdempotencyStore
}

// Close releases the stores and the Redis client, if any
func (s *Stores) Close() error {
	_ = s.Idempotency.Close()
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// StoreFactory creates the cache stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores
// when Redis is unavailable. Default is true
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InMemory returns process-local stores
func (f *StoreFactory) InMemory() *Stores {
	return &Stores{
		GuestCarts:  NewInMemoryGuestCartStore(f.redisConfig.GuestCartTTL),
		Idempotency: NewInMemoryIdempotencyStore(),
	}
}

// Create connects to Redis and falls back to in-memory stores when allowed
func (f *StoreFactory) Create(ctx context.Context) (*Stores, error) {
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis cache stores", zap.String("addr", f.redisConfig.Addr()))
		return &Stores{
			Client:      client,
			GuestCarts:  NewRedisGuestCartStore(client, f.redisConfig.GuestCartTTL),
			Idempotency: NewRedisIdempotencyStore(client, ""),
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, err
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Guest carts and checkout keys are not shared across instances.",
		zap.Error(err),
	)
	return f.InMemory(), nil
}
