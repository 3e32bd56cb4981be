package vaultgate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockoutFailurePrefix = "vlf:"
	lockoutLockPrefix    = "vlk:"
)

// lockoutLimiter tracks failed login attempts per identifier and holds a
// lock key once the threshold is reached. The lock value is the unix expiry
// so callers can report when the lockout lapses.
type lockoutLimiter struct {
	redis  *redis.Client
	config LockoutConfig
}

func newLockoutLimiter(redisClient *redis.Client, cfg LockoutConfig) *lockoutLimiter {
	return &lockoutLimiter{redis: redisClient, config: cfg}
}

func (l *lockoutLimiter) failureKey(identifier string) string {
	return lockoutFailurePrefix + identifier
}

func (l *lockoutLimiter) lockKey(identifier string) string {
	return lockoutLockPrefix + identifier
}

// Locked reports whether the identifier is currently locked out and until
// when.
func (l *lockoutLimiter) Locked(ctx context.Context, identifier string) (time.Time, bool, error) {
	if !l.config.Enabled || identifier == "" {
		return time.Time{}, false, nil
	}

	raw, err := l.redis.Get(ctx, l.lockKey(identifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}

	until := time.Unix(unix, 0)
	if !time.Now().Before(until) {
		// The TTL should have removed it already; treat as unlocked.
		return time.Time{}, false, nil
	}

	return until, true, nil
}

// RecordFailure increments the failure counter. When the counter reaches
// the threshold the identifier is locked and the lockout expiry returned.
// The counter TTL is refreshed per failure, giving a rolling window.
func (l *lockoutLimiter) RecordFailure(ctx context.Context, identifier string) (time.Time, bool, error) {
	if !l.config.Enabled || identifier == "" {
		return time.Time{}, false, nil
	}

	count, err := l.redis.Incr(ctx, l.failureKey(identifier)).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if err := l.redis.Expire(ctx, l.failureKey(identifier), l.config.Duration).Err(); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	if count < int64(l.config.Threshold) {
		return time.Time{}, false, nil
	}

	until := time.Now().Add(l.config.Duration)
	err = l.redis.Set(ctx, l.lockKey(identifier), strconv.FormatInt(until.Unix(), 10), l.config.Duration).Err()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	return until, true, nil
}

// Reset clears the failure counter and any lock. Called on successful
// authentication.
func (l *lockoutLimiter) Reset(ctx context.Context, identifier string) error {
	if !l.config.Enabled || identifier == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.failureKey(identifier), l.lockKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current failure counter for an identifier.
func (l *lockoutLimiter) FailureCount(ctx context.Context, identifier string) (int, error) {
	if !l.config.Enabled || identifier == "" {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, l.failureKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
