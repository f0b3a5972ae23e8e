// Package cache stores KPI snapshots in Redis so dashboards don't recompute
// the batch aggregation on every poll.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"gnce/internal/kpi"
	"gnce/internal/platform/redis"
)

const snapshotKey = "gnce:kpi:snapshot"

// ErrMiss is returned when no cached snapshot exists.
var ErrMiss = errors.New("kpi cache miss")

// Cache wraps a Redis client with a TTL. A nil client yields a disabled
// cache where Get always misses and Set is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a cache. client may be nil when Redis is not configured.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Set stores a snapshot under the TTL.
func (c *Cache) Set(ctx context.Context, s kpi.Summary) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal kpi snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache kpi snapshot: %w", err)
	}
	return nil
}

// Get loads the cached snapshot, ErrMiss when absent or disabled.
func (c *Cache) Get(ctx context.Context) (kpi.Summary, error) {
	if c.client == nil {
		return kpi.Summary{}, ErrMiss
	}
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return kpi.Summary{}, ErrMiss
	}
	if err != nil {
		return kpi.Summary{}, fmt.Errorf("load kpi snapshot: %w", err)
	}
	var s kpi.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return kpi.Summary{}, fmt.Errorf("decode kpi snapshot: %w", err)
	}
	return s, nil
}
