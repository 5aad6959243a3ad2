// Package ratelimit throttles ingestion by client address using a Redis
// sliding window, so one noisy producer cannot starve the rest.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gregoryhugaerts/mini-siem/internal/metrics"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// slidingWindow trims expired entries, counts the rest, and admits the
// request in one atomic round trip.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, now, now)
	redis.call('EXPIRE', key, ttl)
	return 1
end
return 0
`)

type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedis wraps an existing client. The caller keeps ownership of the
// client's lifecycle when sharing it; Close here closes it.
func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// NewRedisFromURL connects and verifies the connection before returning.
func NewRedisFromURL(url string, limit int, window time.Duration) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedis(client, limit, window), nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(r.window/time.Second) + 1

	result, err := slidingWindow.Run(ctx, r.client,
		[]string{"ratelimit:" + key},
		now, windowStart, r.limit, ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(key).Inc()
	}
	return allowed, nil
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

// NoOp admits everything; used when rate limiting is disabled.
type NoOp struct{}

func (NoOp) Allow(ctx context.Context, key string) (bool, error) { return true, nil }
func (NoOp) Close() error                                        { return nil }
