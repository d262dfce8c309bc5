package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intlshop/backend/internal/domain/order"
)

const addressClaimPrefix = "order:address-changed:"

// RedisAddressClaim marks orders whose address was changed. The claim is taken
// before the database write and cleared again if that write fails.
type RedisAddressClaim struct {
	client *redis.Client
}

// NewRedisAddressClaim creates a claim store on a shared client
func NewRedisAddressClaim(client *redis.Client) *RedisAddressClaim {
	return &RedisAddressClaim{client: client}
}

// TryMarkChanged claims orderNo for ttl; false means it was already claimed
func (c *RedisAddressClaim) TryMarkChanged(ctx context.Context, orderNo string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, addressClaimPrefix+orderNo, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim address change for %s: %w", orderNo, err)
	}
	return ok, nil
}

// Clear releases the claim of orderNo
func (c *RedisAddressClaim) Clear(ctx context.Context, orderNo string) error {
	if err := c.client.Del(ctx, addressClaimPrefix+orderNo).Err(); err != nil {
		return fmt.Errorf("failed to clear address claim for %s: %w", orderNo, err)
	}
	return nil
}

// InMemoryAddressClaim is the single-process variant of RedisAddressClaim
type InMemoryAddressClaim struct {
	store *InMemoryIdempotencyStore
}

// NewInMemoryAddressClaim creates a claim store backed by store
func NewInMemoryAddressClaim(store *InMemoryIdempotencyStore) *InMemoryAddressClaim {
	return &InMemoryAddressClaim{store: store}
}

// TryMarkChanged claims orderNo for ttl
func (c *InMemoryAddressClaim) TryMarkChanged(ctx context.Context, orderNo string, ttl time.Duration) (bool, error) {
	return c.store.MarkProcessed(ctx, addressClaimPrefix+orderNo, ttl)
}

// Clear releases the claim of orderNo
func (c *InMemoryAddressClaim) Clear(ctx context.Context, orderNo string) error {
	return c.store.Forget(ctx, addressClaimPrefix+orderNo)
}

var (
	_ order.AddressChangeClaim = (*RedisAddressClaim)(nil)
	_ order.AddressChangeClaim = (*InMemoryAddressClaim)(nil)
)
