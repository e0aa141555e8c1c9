package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Coupons caches coupon-by-code lookups as JSON payloads in Redis. A nil
// receiver or client disables caching, so callers never need to branch.
type Coupons struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCoupons constructs a coupon cache helper.
func NewCoupons(client *redis.Client, ttl time.Duration) *Coupons {
	return &Coupons{client: client, ttl: ttl}
}

// Key derives the cache key for a coupon code. Codes are matched
// case-insensitively at the HTTP edge, so the key is normalised too.
func Key(code string) string {
	return "coupon:code:" + strings.ToLower(strings.TrimSpace(code))
}

// GetJSON unmarshals a cached payload into dst and reports whether the key
// existed.
func (c *Coupons) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v and stores it under key with the configured TTL.
func (c *Coupons) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate drops a cached entry, typically after a write to the backing
// row.
func (c *Coupons) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
