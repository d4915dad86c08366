// Package fallback provides the local key-value backends used when the
// primary database cannot be reached. Each collection (segments, campaigns,
// communication_logs, messages, customers) holds JSON-encoded entries
// addressed by entity id; the store package owns the encoding.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/observability"
)

// ErrClosed is returned by operations on a closed KV.
var ErrClosed = errors.New("fallback store is closed")

// KV is the minimal contract every fallback driver implements.
// Writing one entity touches one entry, never the whole collection.
// Implementations must be safe for concurrent use.
type KV interface {
	// Load returns every entry of collection keyed by id.
	Load(ctx context.Context, collection string) (map[string][]byte, error)
	// Get returns the entries stored under ids. Missing ids are absent from the result.
	Get(ctx context.Context, collection string, ids ...string) (map[string][]byte, error)
	// Put upserts entries by id and marks the collection as written.
	Put(ctx context.Context, collection string, entries map[string][]byte) error
	// Delete removes ids. Deleting a missing id is not an error.
	Delete(ctx context.Context, collection string, ids ...string) error
	// Written reports whether Put ever succeeded for collection.
	Written(ctx context.Context, collection string) (bool, error)
	// Ping verifies the backend is usable.
	Ping(ctx context.Context) error
	// Driver returns the driver name (memory, redis, sqlite).
	Driver() string
	Close() error
}

// New builds the KV selected by cfg.Driver.
// redisClient is only required for the redis driver.
func New(ctx context.Context, cfg *config.FallbackConfig, redisClient *redis.Client) (KV, error) {
	if cfg == nil {
		return nil, fmt.Errorf("fallback config cannot be nil")
	}

	switch cfg.Driver {
	case config.FallbackDriverMemory:
		return NewMemoryKV(), nil
	case config.FallbackDriverRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis fallback driver requires a redis client")
		}
		return NewRedisKV(redisClient, cfg.KeyPrefix), nil
	case config.FallbackDriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown fallback driver %q", cfg.Driver)
	}
}

// observe records the duration of a KV operation.
func observe(driver, op string, start time.Time) {
	observability.FallbackKVDuration.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
}
