package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/tripmatch/config"
)

// ApplicationName tags every session in pg_stat_activity.
const ApplicationName = "tripmatch"

// Option adjusts the pool before it connects.
type Option func(*pgxpool.Config)

// WithListener reserves one extra connection for the trip change listener,
// which holds its connection for the life of the process.
func WithListener() Option {
	return func(c *pgxpool.Config) {
		c.MaxConns++
	}
}

// NewPostgresPool creates a connection pool to PostgreSQL and pings it.
//
// Pool sizing:
//   - MaxConns from config, plus one per long-lived listener (WithListener)
//   - MinConns kept warm from config, never above MaxConns
//   - health-check period 30 s, connect timeout 5 s
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig, opts ...Option) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	return pool, nil
}

func poolConfig(cfg config.PostgresConfig, opts ...Option) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.MaxConnIdleTime = 15 * time.Minute
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	for _, o := range opts {
		o(poolCfg)
	}
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	return poolCfg, nil
}

// HealthCheck pings the PostgreSQL pool and returns nil if healthy.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(pingCtx)
}
