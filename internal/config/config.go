// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/ratings/internal/domain/glicko"
	"github.com/okian/ratings/internal/scheduler"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CheckInterval is how often the scheduler checks for a due run.
	CheckInterval time.Duration `koanf:"check_interval"`
	// RunHour and RunDay place the monthly window.
	RunHour int `koanf:"run_hour"`
	RunDay  int `koanf:"run_day"`
	// Timezone is an IANA zone name; periods and the run window use it.
	Timezone string `koanf:"timezone"`

	// Glicko-2 parameters.
	DefaultRating     float64 `koanf:"default_rating"`
	DefaultRD         float64 `koanf:"default_rd"`
	DefaultVolatility float64 `koanf:"default_volatility"`
	Tau               float64 `koanf:"tau"`

	// WorkerCount bounds concurrent per-player updates during a run.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory game queue.
	QueueSize int `koanf:"queue_size"`
	// IngestWorkers sets the number of workers draining the queue.
	IngestWorkers int `koanf:"ingest_workers"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RedisAddr enables the cross-instance run lock when set.
	RedisAddr string `koanf:"redis_addr"`
	// RedisLockTTL bounds how long a crashed instance can hold the lock.
	RedisLockTTL time.Duration `koanf:"redis_lock_ttl"`
	// RedisLockPrefix namespaces lock keys when instances share a Redis.
	RedisLockPrefix string `koanf:"redis_lock_prefix"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		CheckInterval:       scheduler.DefaultCheckInterval,
		RunHour:             scheduler.DefaultRunHour,
		RunDay:              scheduler.DefaultRunDay,
		Timezone:            "UTC",
		DefaultRating:       glicko.DefaultRating,
		DefaultRD:           glicko.DefaultRD,
		DefaultVolatility:   glicko.DefaultVolatility,
		Tau:                 glicko.DefaultTau,
		WorkerCount:         runtime.NumCPU(),
		QueueSize:           10_000,
		IngestWorkers:       runtime.NumCPU(),
		MaxLeaderboardLimit: 100,
		RedisLockTTL:        30 * time.Minute,
		RedisLockPrefix:     "ratings:recalc:",
	}
}

// GlickoParams returns the engine parameters.
func (c *Config) GlickoParams() glicko.Params {
	return glicko.Params{
		DefaultRating:     c.DefaultRating,
		DefaultRD:         c.DefaultRD,
		DefaultVolatility: c.DefaultVolatility,
		Tau:               c.Tau,
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CheckInterval <= 0:
		return fmt.Errorf("%w: check_interval must be positive", ErrInvalidConfig)
	case c.RunHour < 0 || c.RunHour > 23:
		return fmt.Errorf("%w: run_hour %d not in [0, 23]", ErrInvalidConfig, c.RunHour)
	case c.RunDay < 1 || c.RunDay > scheduler.MaxRunDay:
		return fmt.Errorf("%w: run_day %d not in [1, %d]", ErrInvalidConfig, c.RunDay, scheduler.MaxRunDay)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be at least 1", ErrInvalidConfig)
	case c.IngestWorkers < 1:
		return fmt.Errorf("%w: ingest_workers must be at least 1", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	case c.RedisAddr != "" && c.RedisLockTTL <= 0:
		return fmt.Errorf("%w: redis_lock_ttl must be positive", ErrInvalidConfig)
	}
	if err := c.GlickoParams().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
