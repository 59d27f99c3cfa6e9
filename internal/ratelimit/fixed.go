package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow counts events in fixed windows using ulule/limiter over Redis.
type FixedWindow struct {
	Store limiter.Store
}

// NewFixedWindow wires a ulule/limiter Redis store under prefix.
func NewFixedWindow(client *redis.Client, prefix string) (*FixedWindow, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit store: %w", err)
	}
	return &FixedWindow{Store: store}, nil
}

// Allow increments the key's counter for the current window.
func (f *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f == nil || f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	instance := limiter.New(f.Store, limiter.Rate{Period: window, Limit: int64(max)})
	lctx, err := instance.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}
