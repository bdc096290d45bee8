// Package cache holds short-lived Redis snapshots of derived read models.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiva/tripmatch/internal/model"
)

// DefaultFleetTTL bounds how stale a cached fleet snapshot may be when no
// change notification arrives.
const DefaultFleetTTL = 30 * time.Second

const fleetStatusKey = "cache:fleet-status"

// FleetCache stores the fleet-status snapshot in Redis.
type FleetCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFleetCache wraps client. A non-positive ttl falls back to DefaultFleetTTL.
func NewFleetCache(client *redis.Client, ttl time.Duration) *FleetCache {
	if ttl <= 0 {
		ttl = DefaultFleetTTL
	}
	return &FleetCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot, or nil on a miss.
func (c *FleetCache) Get(ctx context.Context) (*model.FleetStatus, error) {
	data, err := c.client.Get(ctx, fleetStatusKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fleet cache: get: %w", err)
	}

	var fs model.FleetStatus
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("fleet cache: decode: %w", err)
	}
	return &fs, nil
}

// Set stores a snapshot for the configured TTL.
func (c *FleetCache) Set(ctx context.Context, fs *model.FleetStatus) error {
	payload, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("fleet cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, fleetStatusKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("fleet cache: set: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot so the next read rebuilds it.
func (c *FleetCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, fleetStatusKey).Err(); err != nil {
		return fmt.Errorf("fleet cache: invalidate: %w", err)
	}
	return nil
}
