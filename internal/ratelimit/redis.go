package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounters implements Counters on a Redis client. INCR and EXPIRE
// run in a single transaction so a counter never lingers without an
// expiry under normal operation.
type RedisCounters struct {
	client *redis.Client
}

// NewRedisCounters creates a Redis-backed counter store.
func NewRedisCounters(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

// Get returns the counter value, with 0 for a missing key.
func (r *RedisCounters) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// IncrExpire atomically increments the key and resets its expiry.
func (r *RedisCounters) IncrExpire(ctx context.Context, key string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}
