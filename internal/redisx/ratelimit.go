package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter backed by Redis, so the limit holds
// across process instances.
type RateLimiter struct {
	RDB    *redis.Client
	Limit  int
	Window time.Duration
}

func RateKey(scope, client string) string {
	return fmt.Sprintf(KeyRateLimit, scope, client)
}

// Allow increments the window counter for key and reports whether the caller
// is still under the limit. Fails open on Redis errors.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	n, err := l.RDB.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		_ = l.RDB.Expire(ctx, key, l.Window).Err()
	}
	return n <= int64(l.Limit)
}
