package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindow prunes, counts and conditionally appends in one round trip.
// KEYS[1] window key; ARGV: now ms, window ms, limit, member.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter keeps each client's window in a sorted set scored by
// unix millis. Errors from Redis admit the request.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	log    *zap.Logger
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		log:    log.Named("limiter"),
	}
}

func (r *RedisLimiter) Admit(ctx context.Context, clientID string, now time.Time) bool {
	allowed, err := slidingWindow.Run(ctx, r.client,
		[]string{"ratelimit:" + clientID},
		now.UnixMilli(), r.window.Milliseconds(), r.limit, uuid.NewString(),
	).Int()
	if err != nil {
		r.log.Error("redis window check failed, admitting", zap.String("client", clientID), zap.Error(err))
		return true
	}
	if allowed == 0 {
		r.log.Warn("rate limit hit", zap.String("client", clientID))
		return false
	}
	return true
}
