// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Matching MatchingConfig
	LogLevel string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the donor store. An empty URL runs the in-memory
// store, which starts empty.
type DatabaseConfig struct {
	Driver string
	URL    string
}

// RedisConfig configures the PGroup cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PGroupTTL    time.Duration
}

// MatchingConfig tunes the matching pipeline.
type MatchingConfig struct {
	BatchSize             int
	HydrationBatchSize    int
	MaxConcurrentVariants int
}

var supportedDrivers = map[string]bool{"pgx": true, "postgres": true, "sqlite": true}

// FromEnv builds a Config from environment variables so main stays lean.
// Unset variables take defaults; malformed numbers and durations are errors.
func FromEnv() (Config, error) {
	p := &parser{}
	cfg := Config{
		Server: Server{
			Addr:            p.str("MATCHING_ADDR", ":8080"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver: p.str("DATABASE_DRIVER", "pgx"),
			URL:    os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PGroupTTL:    p.duration("PGROUP_CACHE_TTL", 24*time.Hour),
		},
		Matching: MatchingConfig{
			BatchSize:             p.int("MATCHING_BATCH_SIZE", 250_000),
			HydrationBatchSize:    p.int("MATCHING_HYDRATION_BATCH_SIZE", 1_000),
			MaxConcurrentVariants: p.int("MATCHING_MAX_CONCURRENT_VARIANTS", 4),
		},
		LogLevel: p.str("LOG_LEVEL", "info"),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that parse but cannot be used.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("MATCHING_ADDR cannot be empty")
	}
	if !supportedDrivers[c.Database.Driver] {
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Matching.BatchSize <= 0 {
		return fmt.Errorf("MATCHING_BATCH_SIZE must be positive")
	}
	if c.Matching.HydrationBatchSize <= 0 {
		return fmt.Errorf("MATCHING_HYDRATION_BATCH_SIZE must be positive")
	}
	if c.Matching.MaxConcurrentVariants <= 0 {
		return fmt.Errorf("MATCHING_MAX_CONCURRENT_VARIANTS must be positive")
	}
	if c.Redis.PGroupTTL < 0 {
		return fmt.Errorf("PGROUP_CACHE_TTL cannot be negative")
	}
	return nil
}

// parser keeps the first error so FromEnv reads as a flat list of fields.
type parser struct {
	err error
}

func (p *parser) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
	}
	return d
}
