package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisLimiter is a fixed-window counter: INCR, and EXPIRE NX so the first
// hit of a window sets its end.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	k := l.prefix + key
	var incr *redis.IntCmd
	// EXPIRE NX in the same transaction so a key can never outlive its window
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, err
	}
	if incr.Val() > int64(limit) {
		// keep the counter at the limit so retries do not inflate it
		if err := l.client.Decr(ctx, k).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Unlimited allows everything. Used when Redis is not configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}
