package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// StatsCache stores rendered analytics payloads per scope ("all" or a user id).
// Values are opaque JSON so the analytics service owns the shape.
type StatsCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewStatsCache(client *redisv9.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Get decodes the cached value into dst and reports whether it was present.
func (c *StatsCache) Get(ctx context.Context, scope string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, statsKey(scope)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get stats failed: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("unmarshal cached stats failed: %w", err)
	}
	return true, nil
}

func (c *StatsCache) Set(ctx context.Context, scope string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal stats failed: %w", err)
	}
	if err := c.client.Set(ctx, statsKey(scope), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set stats failed: %w", err)
	}
	return nil
}

// Invalidate drops the scope's entry together with the global one.
func (c *StatsCache) Invalidate(ctx context.Context, scope string) error {
	if err := c.client.Del(ctx, statsKey(scope), statsKey(ScopeAll)).Err(); err != nil {
		return fmt.Errorf("redis delete stats failed: %w", err)
	}
	return nil
}

const ScopeAll = "all"

func statsKey(scope string) string {
	return "analytics:stats:" + scope
}
