package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantum-dashboard/internal/model"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redisv9.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestHistoryCache_RoundTripAndDirty(t *testing.T) {
	mr, client := newClient(t)
	c := NewHistoryCache(client, time.Minute, 5*time.Second)
	ctx := context.Background()

	_, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)

	msgs := []model.ChatMessage{{ID: "m1", ChannelID: "s1", UserID: "1", UserName: "ada", Content: "hi", Type: "text"}}
	require.NoError(t, c.SetHistory(ctx, "s1", msgs))

	got, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "hi", got[0].Content)

	require.NoError(t, c.Invalidate(ctx, "s1"))
	_, hit, err = c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)

	dirty, err := c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, dirty)

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestStatsCache_TTLAndInvalidate(t *testing.T) {
	mr, client := newClient(t)
	c := NewStatsCache(client, 3*time.Second)
	ctx := context.Background()

	type payload struct {
		Total int `json:"total"`
	}
	require.NoError(t, c.Set(ctx, "7", payload{Total: 4}))
	require.NoError(t, c.Set(ctx, ScopeAll, payload{Total: 9}))

	var got payload
	hit, err := c.Get(ctx, "7", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 4, got.Total)

	require.NoError(t, c.Invalidate(ctx, "7"))
	hit, err = c.Get(ctx, ScopeAll, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "7", payload{Total: 5}))
	mr.FastForward(4 * time.Second)
	hit, err = c.Get(ctx, "7", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
