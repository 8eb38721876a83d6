// Package ratelimit implements a per-client fixed-window request budget in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "zoning:ratelimit:"

// Decision is the outcome for one request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

type Limiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *Limiter) Limit() int            { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) key(client string, now time.Time) string {
	bucket := now.UnixNano() / int64(l.window)
	return fmt.Sprintf("%s%s:%d", keyPrefix, client, bucket)
}

// Allow counts one request for client. On a Redis error the decision allows
// the request and the error is returned for logging.
func (l *Limiter) Allow(ctx context.Context, client string) (Decision, error) {
	now := l.now()
	key := l.key(client, now)
	windowStart := time.Unix(0, (now.UnixNano()/int64(l.window))*int64(l.window))
	resetIn := windowStart.Add(l.window).Sub(now)

	open := Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetIn: resetIn}

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return open, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return open, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(count) <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}
