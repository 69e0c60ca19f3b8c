package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/doorman/pkg/idx"
	"github.com/redis/go-redis/v9"
)

// slidingWindow keeps one sorted-set member per accepted hit, scored by its
// unix-millisecond timestamp. Rejected hits are not recorded.
//
// Returns {allowed, remaining, retry_after_ms}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, limit - count - 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// RedisLimiter is a sliding-window log shared by every instance pointed at
// the same redis.
type RedisLimiter struct {
	Client redis.UniversalClient
	Prefix string
	Config RateLimitConfig

	// Now overrides the clock, used by tests.
	Now func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{Client: client, Prefix: prefix, Config: cfg}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}

	res, err := slidingWindow.Run(ctx, l.Client,
		[]string{l.Prefix + key},
		now.UnixMilli(),
		l.Config.Window.Milliseconds(),
		l.Config.RequestsPerWindow,
		idx.NewAt(now).String(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("httpx: redis limiter: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("httpx: redis limiter: unexpected reply %v", res)
	}

	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
