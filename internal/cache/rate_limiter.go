package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter limiter backed by INCR and EXPIRE.
type RateLimiter struct {
	cli *redis.Client
}

func NewRateLimiter(cli *redis.Client) *RateLimiter {
	return &RateLimiter{cli: cli}
}

// Allow counts one hit for key and reports whether it is within limit for
// the current window. The window expiry is re-armed whenever the counter has
// none, so a failed EXPIRE cannot leave the key without a TTL.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := r.cli.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}

	count := incr.Val()
	if ttl.Val() < 0 {
		if err := r.cli.Expire(ctx, key, window).Err(); err != nil {
			return count <= int64(limit), err
		}
	}
	return count <= int64(limit), nil
}

// UserActionKey builds the limiter key for one user and action.
func UserActionKey(userID int, action string) string {
	return fmt.Sprintf("rate_limit:%s:%d", action, userID)
}
