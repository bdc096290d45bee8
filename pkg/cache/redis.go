package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiva/tripmatch/config"
)

// ClientName identifies this service in CLIENT LIST.
const ClientName = "tripmatch"

// NewRedisClient creates the Redis client backing the fleet-status cache and
// pings it.
//
// The cache sees one read per fleet-status request and one delete per trip
// change, so only a couple of idle connections are kept warm.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s failed: %w", cfg.Addr(), err)
	}

	return client, nil
}

func options(cfg config.RedisConfig) *redis.Options {
	minIdle := 2
	if cfg.PoolSize > 0 && cfg.PoolSize < minIdle {
		minIdle = cfg.PoolSize
	}
	return &redis.Options{
		Addr:         cfg.Addr(),
		ClientName:   ClientName,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: minIdle,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// HealthCheck pings the Redis client and returns nil if healthy.
func HealthCheck(ctx context.Context, client *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx).Err()
}
