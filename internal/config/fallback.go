package config

import (
	"fmt"
	"time"
)

// Fallback store drivers.
const (
	FallbackDriverMemory = "memory"
	FallbackDriverRedis  = "redis"
	FallbackDriverSQLite = "sqlite"
)

// FallbackConfig configures the local key-value store consulted when the
// primary database is unreachable.
type FallbackConfig struct {
	Driver string `envconfig:"DRIVER" default:"sqlite" validate:"oneof=memory redis sqlite"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `envconfig:"SQLITE_PATH" default:"herald-fallback.db"`

	// KeyPrefix namespaces collection keys in shared Redis instances.
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"herald"`

	// ReprobeInterval is how long the primary stays marked unavailable
	// before the next request probes it again.
	ReprobeInterval time.Duration `envconfig:"REPROBE_INTERVAL" default:"5s" validate:"gt=0"`
}

// Validate checks driver specific settings.
func (c *FallbackConfig) Validate() error {
	if c.Driver == FallbackDriverSQLite && c.SQLitePath == "" {
		return fmt.Errorf("fallback sqlite path cannot be empty")
	}
	if err := validateNoWhitespace(c.KeyPrefix, "fallback key prefix"); err != nil {
		return err
	}
	return nil
}
