// Package ratelimit throttles calls to the remote object store with a
// fixed-window counter kept in Redis, shared by every replica.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the subset of redis.Cmdable the limiter uses.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type Limiter struct {
	client Counter
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewLimiter(client Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "telecloud:ratelimit:",
		now:    time.Now,
	}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Allow counts one call against key in the current window and reports
// whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := l.now().UnixNano() / int64(l.window)
	k := l.prefix + key + ":" + strconv.FormatInt(slot, 10)

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment %s: %w", k, err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, 2*l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry on %s: %w", k, err)
		}
	}

	return n <= l.limit, nil
}
