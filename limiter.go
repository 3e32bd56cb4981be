package vaultgate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowLimiter is a fixed-window counter: INCR per hit, TTL set on the
// first hit of a window.
type windowLimiter struct {
	redis *redis.Client
}

func newWindowLimiter(redisClient *redis.Client) *windowLimiter {
	return &windowLimiter{redis: redisClient}
}

// allow records a hit against key and reports whether it stayed within max
// for the current window. max <= 0 disables the limit.
func (l *windowLimiter) allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	if max <= 0 || window <= 0 {
		return true, nil
	}

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	return count <= int64(max), nil
}
