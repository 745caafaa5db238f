package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RateLimiter is the fixed-window surface used by the rate-limit middleware.
type RateLimiter interface {
	Allow(ctx context.Context, scope string, limit int64, window time.Duration) (RateLimitDecision, error)
}

// RateLimitDecision is the outcome of charging one request to a window.
type RateLimitDecision struct {
	Allowed bool
	Count   int64
	Limit   int64
	ResetAt time.Time
}

// Remaining is how many more requests fit in the current window.
func (d RateLimitDecision) Remaining() int64 {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// RetryAfter rounds the time left in the window up to whole seconds.
func (d RateLimitDecision) RetryAfter(now time.Time) int {
	left := d.ResetAt.Sub(now)
	if left <= 0 {
		return 1
	}
	return int((left + time.Second - 1) / time.Second)
}

// Allow charges one request to scope's current window. Windows are aligned to
// the epoch and the window index is part of the key, so a counter whose TTL
// failed to apply still rolls over.
func (c *Client) Allow(ctx context.Context, scope string, limit int64, window time.Duration) (RateLimitDecision, error) {
	if window <= 0 {
		return RateLimitDecision{}, errors.New("rate limit window must be positive")
	}
	if c.store == nil {
		return RateLimitDecision{}, errNotInitialized
	}

	bucket := c.now().UnixNano() / int64(window)
	key := c.RateLimitKey(fmt.Sprintf("%s:%d", scope, bucket))

	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return RateLimitDecision{}, err
	}
	if count == 1 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return RateLimitDecision{}, err
		}
	}

	return RateLimitDecision{
		Allowed: count <= limit,
		Count:   count,
		Limit:   limit,
		ResetAt: time.Unix(0, (bucket+1)*int64(window)).UTC(),
	}, nil
}
