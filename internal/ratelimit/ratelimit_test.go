package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedis(client, limit, window)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestRedisLimiterEnforcesLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be within the limit", i+1)
	}

	allowed, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request must be rejected")
}

func TestRedisLimiterIsolatesClients(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, allowed)

	// A different client has its own window.
	allowed, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiterWindowSlides(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 50*time.Millisecond)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "c")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = l.Allow(ctx, "c")
	require.NoError(t, err)
	require.False(t, allowed)

	time.Sleep(100 * time.Millisecond)

	allowed, err = l.Allow(ctx, "c")
	require.NoError(t, err)
	assert.True(t, allowed, "request after the window must be admitted")
}

func TestNewRedisFromURLRejectsBadURL(t *testing.T) {
	_, err := NewRedisFromURL("not-a-url", 10, time.Minute)
	assert.Error(t, err)
}

func TestNoOpAlwaysAllows(t *testing.T) {
	l := NoOp{}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		allowed, err := l.Allow(ctx, "any")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.NoError(t, l.Close())
}
