package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "trip_changes", cfg.Store.NotifyChannel)
	assert.Equal(t, 3, cfg.Booking.MaxMatchAttempts)
	assert.Equal(t, 30*time.Second, cfg.Booking.FleetCacheTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "trips", cfg.Kafka.TripsTopic)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("BOOKING_FLEET_CACHE_TTL", "5s")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Booking.FleetCacheTTL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.ServerAddr())
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestLoad_RejectsOverlongNotifyChannel(t *testing.T) {
	t.Setenv("STORE_NOTIFY_CHANNEL", strings.Repeat("x", 64))

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_NOTIFY_CHANNEL")
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{User: "u", Password: "p", Host: "db", Port: 5432, DBName: "trips", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/trips?sslmode=disable", p.DSN())
}
