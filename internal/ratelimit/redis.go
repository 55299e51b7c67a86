// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript counts one hit and returns {count, pttl}.
// Counts above the limit are not incremented further; the first hit starts the window.
var hitScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count > tonumber(ARGV[1]) then
	return {count, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	ttl = tonumber(ARGV[2])
end
return {count, ttl}
`)

// RedisLimiter keeps counters as expiring Redis keys.
type RedisLimiter struct {
	client redis.UniversalClient
	opts   options
}

// NewRedis creates a limiter backed by the given Redis client.
func NewRedis(client redis.UniversalClient, opts ...Option) *RedisLimiter {
	return &RedisLimiter{client: client, opts: newOptions(opts)}
}

// Check counts one request for key.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := hitScript.Run(ctx, l.client, []string{redisKey(key)}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %q: %w", key, err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit %q: unexpected script reply %v", key, vals)
	}

	now := l.opts.now()
	resetAt := now.Add(time.Duration(vals[1]) * time.Millisecond)
	return result(int(vals[0]), limit, now, resetAt), nil
}

// NewRedisClient connects to the Redis server at url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func redisKey(key string) string {
	return "rl:" + key
}
