package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intlshop/backend/internal/domain/pricing"
)

const currencyKeyPrefix = "currency:config:"

// RedisCurrencyCache shares currency configuration between instances
type RedisCurrencyCache struct {
	client *redis.Client
}

// NewRedisCurrencyCache creates a cache on a shared client
func NewRedisCurrencyCache(client *redis.Client) *RedisCurrencyCache {
	return &RedisCurrencyCache{client: client}
}

// Get returns the cached record, or nil without error on a miss
func (c *RedisCurrencyCache) Get(ctx context.Context, code string) (*pricing.CurrencyRecord, error) {
	raw, err := c.client.Get(ctx, currencyKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read currency %s: %w", code, err)
	}
	var rec pricing.CurrencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode currency %s: %w", code, err)
	}
	return &rec, nil
}

// Set stores rec for ttl
func (c *RedisCurrencyCache) Set(ctx context.Context, rec pricing.CurrencyRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, currencyKeyPrefix+rec.Code, raw, ttl).Err()
}

// Delete evicts code
func (c *RedisCurrencyCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, currencyKeyPrefix+code).Err()
}
