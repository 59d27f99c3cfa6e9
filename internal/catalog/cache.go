package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/grocery-saver/internal/coupon"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client or non-positive ttl turns
// every operation into a no-op.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Cached is a read-through Catalog. Cache failures fall back to the source;
// OnError, when set, observes them.
type Cached struct {
	Source  Catalog
	Cache   *Cache
	Prefix  string
	OnError func(error)
}

// CouponsByStore serves the store catalog from cache or loads and stores it.
func (c Cached) CouponsByStore(ctx context.Context, storeID string) ([]coupon.Coupon, error) {
	if storeID == "" {
		return nil, ErrStoreRequired
	}
	key := c.Prefix + storeID
	var cached []coupon.Coupon
	hit, err := c.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		c.report(err)
	} else if hit {
		return cached, nil
	}

	coupons, err := c.Source.CouponsByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if coupons == nil {
		coupons = []coupon.Coupon{}
	}
	if err := c.Cache.SetJSON(ctx, key, coupons); err != nil {
		c.report(err)
	}
	return coupons, nil
}

func (c Cached) report(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}
