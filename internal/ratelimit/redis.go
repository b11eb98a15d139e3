package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowScript applies the fixed-window rules atomically.
// ARGV: now (ms), window (ms), max per window. Returns {allowed, start, count}.
var redisWindowScript = redis.NewScript(`
local data = redis.call("HMGET", KEYS[1], "start", "count")
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local start = tonumber(data[1])
local count = tonumber(data[2])
if start == nil or count == nil or (now - start) > window then
  redis.call("HSET", KEYS[1], "start", now, "count", 1)
  return {1, now, 1}
end
if count < max then
  count = redis.call("HINCRBY", KEYS[1], "count", 1)
  return {1, start, count}
end
return {0, start, count}
`)

// RedisLimiter implements a fixed-window rate limiter backed by Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow checks and records one request for identity.
func (l *RedisLimiter) Allow(ctx context.Context, identity int64, policy Policy, now time.Time) (Result, error) {
	if l == nil || l.client == nil {
		return Result{}, errors.New("rate limit redis: not initialized")
	}
	policy = policy.normalized()
	if policy.MaxPerWindow <= 0 {
		return Result{Allowed: true}, nil
	}

	res, errEval := redisWindowScript.Run(ctx, l.client,
		[]string{KeyForIdentity(l.prefix, identity)},
		now.UnixMilli(), policy.Window.Milliseconds(), policy.MaxPerWindow,
	).Slice()
	if errEval != nil {
		return Result{}, errEval
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("rate limit redis: unexpected response length %d", len(res))
	}
	values := make([]int64, len(res))
	for i, raw := range res {
		v, ok := raw.(int64)
		if !ok {
			return Result{}, errors.New("rate limit redis: unexpected response type")
		}
		values[i] = v
	}

	state := windowState{exists: true, start: time.UnixMilli(values[1]).UTC(), count: int(values[2])}
	return resultFor(state, policy, values[0] == 1), nil
}
