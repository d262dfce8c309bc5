package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/config"
)

// Stores bundles the Redis-backed collaborators, or their in-memory fallbacks
type Stores struct {
	// Replay marks processed webhook transmissions
	Replay shared.IdempotencyStore
	// AddressClaims guards the one-time address change
	AddressClaims order.AddressChangeClaim
	// Currencies is nil when Redis is unavailable; the service then relies on its local map
	Currencies pricing.CurrencyCache

	client *redis.Client
	memory *InMemoryIdempotencyStore
}

// Close releases the Redis client or the in-memory sweeper
func (s *Stores) Close() error {
	if s.memory != nil {
		_ = s.memory.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Client returns the Redis client, or nil in fallback mode
func (s *Stores) Client() *redis.Client {
	return s.client
}

// Factory builds Stores from configuration
type Factory struct {
	redisConfig config.RedisConfig
	logger      *zap.Logger
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build connects to Redis. When it is unreachable and not required, in-memory
// stores are returned instead.
func (f *Factory) Build(ctx context.Context) (*Stores, error) {
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis stores", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisStores(client), nil
	}

	if f.redisConfig.Required {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Webhook replay protection and address claims are not shared across instances.",
		zap.Error(err),
	)
	return NewInMemoryStores(), nil
}

// NewRedisStores wires every store onto client
func NewRedisStores(client *redis.Client) *Stores {
	return &Stores{
		Replay:        NewRedisIdempotencyStore(client, DefaultReplayKeyPrefix),
		AddressClaims: NewRedisAddressClaim(client),
		Currencies:    NewRedisCurrencyCache(client),
		client:        client,
	}
}

// NewInMemoryStores builds single-process stores
func NewInMemoryStores() *Stores {
	mem := NewInMemoryIdempotencyStore()
	return &Stores{
		Replay:        mem,
		AddressClaims: NewInMemoryAddressClaim(mem),
		memory:        mem,
	}
}
