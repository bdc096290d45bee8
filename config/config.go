package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Store    StoreConfig
	Booking  BookingConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// KafkaConfig holds event publishing settings. Empty Brokers disables Kafka
// and driver offers are only logged.
type KafkaConfig struct {
	Brokers    []string `mapstructure:"KAFKA_BROKERS"`
	TripsTopic string   `mapstructure:"KAFKA_TRIPS_TOPIC"`
}

// StoreConfig selects the persisted-store backend.
type StoreConfig struct {
	Backend       string `mapstructure:"STORE_BACKEND"` // postgres | memory
	NotifyChannel string `mapstructure:"STORE_NOTIFY_CHANNEL"` // trigger and listener; re-run migrate after changing
	SeedDemo      bool   `mapstructure:"STORE_SEED_DEMO"`
}

// BookingConfig tunes the booking synchronizer and fleet snapshot.
type BookingConfig struct {
	MaxMatchAttempts int           `mapstructure:"BOOKING_MAX_MATCH_ATTEMPTS"`
	FleetCacheTTL    time.Duration `mapstructure:"BOOKING_FLEET_CACHE_TTL"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"LOG_LEVEL"`
	Env   string `mapstructure:"APP_ENV"`
}

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.Reset()
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "tripmatch")
	viper.SetDefault("POSTGRES_PASSWORD", "tripmatch_secret")
	viper.SetDefault("POSTGRES_DB", "tripmatch_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 10)

	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TRIPS_TOPIC", "trips")

	viper.SetDefault("STORE_BACKEND", BackendPostgres)
	viper.SetDefault("STORE_NOTIFY_CHANNEL", "trip_changes")
	viper.SetDefault("STORE_SEED_DEMO", false)

	viper.SetDefault("BOOKING_MAX_MATCH_ATTEMPTS", 3)
	viper.SetDefault("BOOKING_FLEET_CACHE_TTL", "30s")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("APP_ENV", "prod")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Kafka ───────────────────────────────────────────
	cfg.Kafka = KafkaConfig{
		Brokers:    splitList(viper.GetString("KAFKA_BROKERS")),
		TripsTopic: viper.GetString("KAFKA_TRIPS_TOPIC"),
	}

	// ── Store ───────────────────────────────────────────
	cfg.Store = StoreConfig{
		Backend:       strings.ToLower(viper.GetString("STORE_BACKEND")),
		NotifyChannel: viper.GetString("STORE_NOTIFY_CHANNEL"),
		SeedDemo:      viper.GetBool("STORE_SEED_DEMO"),
	}

	// ── Booking ─────────────────────────────────────────
	cfg.Booking = BookingConfig{
		MaxMatchAttempts: viper.GetInt("BOOKING_MAX_MATCH_ATTEMPTS"),
		FleetCacheTTL:    viper.GetDuration("BOOKING_FLEET_CACHE_TTL"),
	}

	// ── Log ─────────────────────────────────────────────
	cfg.Log = LogConfig{
		Level: viper.GetString("LOG_LEVEL"),
		Env:   viper.GetString("APP_ENV"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("config: STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.Store.Backend)
	}
	if n := len(c.Store.NotifyChannel); n == 0 || n > 63 {
		return fmt.Errorf("config: STORE_NOTIFY_CHANNEL must be 1-63 bytes, got %d", n)
	}
	if c.Booking.MaxMatchAttempts <= 0 {
		return fmt.Errorf("config: BOOKING_MAX_MATCH_ATTEMPTS must be positive")
	}
	return nil
}

// splitList parses a comma-separated env value.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
