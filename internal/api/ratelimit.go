// internal/api/ratelimit.go
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter per customer kept in Redis.
type RateLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window, now: time.Now}
}

func (l *RateLimiter) key(customerID string) string {
	bucket := l.now().Unix() / int64(l.window/time.Second)
	return fmt.Sprintf("%s:ratelimit:%s:%d", l.prefix, customerID, bucket)
}

// Allow counts one request and reports whether it fits in the current window.
func (l *RateLimiter) Allow(ctx context.Context, customerID string) (bool, error) {
	if l == nil || l.limit <= 0 || l.window < time.Second {
		return true, nil
	}

	key := l.key(customerID)
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

// Limit returns the configured number of requests per window.
func (l *RateLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.limit
}
