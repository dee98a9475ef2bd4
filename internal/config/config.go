// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and queue (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// URL cache TTLs (redirect hot path)
	URLCachePrimaryTTL time.Duration `env:"URL_CACHE_PRIMARY_TTL" envDefault:"60s"`
	URLCacheStaleTTL   time.Duration `env:"URL_CACHE_STALE_TTL" envDefault:"15m"`
	URLCacheLockTTL    time.Duration `env:"URL_CACHE_LOCK_TTL" envDefault:"5s"`

	// Stats response cache
	StatsCacheEnabled    bool          `env:"STATS_CACHE_ENABLED" envDefault:"true"`
	StatsCachePrimaryTTL time.Duration `env:"STATS_CACHE_PRIMARY_TTL" envDefault:"60s"`
	StatsCacheStaleTTL   time.Duration `env:"STATS_CACHE_STALE_TTL" envDefault:"10m"`
	StatsCacheLockTTL    time.Duration `env:"STATS_CACHE_LOCK_TTL" envDefault:"10s"`

	// Click counter buffer (batched dashboard stats)
	BufferEnabled       bool          `env:"CLICK_BUFFER_ENABLED" envDefault:"false"`
	BufferTTL           time.Duration `env:"CLICK_BUFFER_TTL" envDefault:"1h"`
	BufferFlushInterval time.Duration `env:"CLICK_BUFFER_FLUSH_INTERVAL" envDefault:"30s"`

	// Ingest worker
	WorkerPrefetch      int           `env:"WORKER_PREFETCH" envDefault:"1"`
	WorkerBlockTimeout  time.Duration `env:"WORKER_BLOCK_TIMEOUT" envDefault:"5s"`
	WorkerClaimInterval time.Duration `env:"WORKER_CLAIM_INTERVAL" envDefault:"10s"`
	WorkerClaimIdle     time.Duration `env:"WORKER_CLAIM_IDLE" envDefault:"30s"`

	// GeoIP database path; empty disables geographic resolution.
	GeoIPDatabasePath string `env:"GEOIP_DATABASE_PATH" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
