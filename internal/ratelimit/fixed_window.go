package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// FixedWindowLimiter counts hits per key in Redis over fixed windows.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	prefix string
	client redis.UniversalClient
	now    func() time.Time
}

// NewFixedWindowLimiter builds a limiter on a shared Redis client.
func NewFixedWindowLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window < time.Millisecond {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sf:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		prefix: prefix,
		client: client,
		now:    time.Now,
	}, nil
}

// Allow records a hit for key. Redis failures fail closed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) Decision {
	if l == nil {
		return Decision{}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	nowMs := l.now().UTC().UnixMilli()
	slot := nowMs / windowMs
	retryAfter := time.Duration((slot+1)*windowMs-nowMs) * time.Millisecond

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return Decision{RetryAfter: retryAfter}
	}
	if count > int64(l.limit) {
		return Decision{RetryAfter: retryAfter}
	}
	return Decision{Allowed: true, Remaining: l.limit - int(count)}
}
