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

func newLimiter(t *testing.T, limit int, window time.Duration) (*SlidingWindowLimiter, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(client, Config{RequestsPerWindow: limit, WindowSize: window}, "rl:")
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	l, clock := newLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		*clock = clock.Add(time.Second)
	}

	res, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 57*time.Second, res.RetryAfter)

	other, err := l.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	*clock = clock.Add(58 * time.Second)
	res, err = l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
