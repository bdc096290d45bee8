package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shiva/tripmatch/config"
)

func TestOptions(t *testing.T) {
	o := options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 20})

	assert.Equal(t, "cache:6380", o.Addr)
	assert.Equal(t, ClientName, o.ClientName)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, 20, o.PoolSize)
	assert.Equal(t, 2, o.MinIdleConns)
}

func TestOptions_TinyPool(t *testing.T) {
	o := options(config.RedisConfig{Host: "cache", Port: 6379, PoolSize: 1})
	assert.Equal(t, 1, o.MinIdleConns)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.ErrorContains(t, err, "127.0.0.1:1")
}
