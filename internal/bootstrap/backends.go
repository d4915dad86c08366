// Package bootstrap opens the storage backends shared by the Herald binaries
// and tears them down in reverse order.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/herald/internal/cache"
	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/database"
	"github.com/rafaeljc/herald/internal/fallback"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/store"
)

const (
	// PoolMonitorInterval is how often pool statistics are exported.
	PoolMonitorInterval = 15 * time.Second

	customerCacheCapacity = 100_000
	customerCacheTTL      = 10 * time.Minute
)

// Backends groups the opened connections and the repository built on them.
// DB and Redis are nil when the corresponding settings are absent.
type Backends struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	KV        fallback.KV
	Repo      *store.Resilient
	Customers *cache.CustomerCache

	logger *slog.Logger
}

// Open connects every configured backend. On error, anything already opened is closed.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Backends, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backends{logger: logger}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	var primary store.Repository
	if cfg.Database.IsConfigured() {
		b.DB, err = database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		primary = store.NewPostgresStore(b.DB)
	} else {
		logger.Warn("database not configured, serving from the fallback store only")
	}

	if cfg.Redis.IsConfigured() {
		b.Redis, err = cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	b.KV, err = fallback.New(ctx, &cfg.Fallback, b.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}

	b.Customers, err = cache.NewCustomerCache(customerCacheCapacity, customerCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to build customer cache: %w", err)
	}

	b.Repo = store.NewResilient(primary, store.NewFallbackStore(b.KV), cfg.Fallback.ReprobeInterval, logger)

	logger.Info("storage backends ready",
		slog.Bool("postgres", b.DB != nil),
		slog.Bool("redis", b.Redis != nil),
		slog.String("fallback_driver", b.KV.Driver()),
	)
	return b, nil
}

// Checkers returns the readiness checks for the opened backends.
func (b *Backends) Checkers() []observability.Checker {
	checkers := make([]observability.Checker, 0, 3)
	if b.DB != nil {
		checkers = append(checkers, database.NewHealthChecker(b.DB))
	}
	if b.Redis != nil {
		checkers = append(checkers, cache.NewHealthChecker(b.Redis))
	}
	if b.KV != nil {
		checkers = append(checkers, observability.CheckFunc{Component: "fallback", Fn: b.KV.Ping})
	}
	return checkers
}

// RunMonitors exports pool and cache statistics until ctx is cancelled.
func (b *Backends) RunMonitors(ctx context.Context) {
	if b.DB != nil {
		go database.RunPoolMonitor(ctx, b.DB, PoolMonitorInterval)
	}
	if b.Redis != nil {
		go cache.RunPoolMonitor(ctx, b.Redis, PoolMonitorInterval)
	}
	if b.Customers != nil {
		go b.Customers.RunMetricsCollector(ctx, PoolMonitorInterval)
	}
}

// Close releases the backends in reverse order of opening. Safe on a partial Backends.
func (b *Backends) Close() {
	if b.Customers != nil {
		b.Customers.Close()
	}
	if b.KV != nil {
		if err := b.KV.Close(); err != nil {
			b.logger.Error("failed to close fallback store", slog.String("error", err.Error()))
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			b.logger.Error("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	if b.DB != nil {
		b.DB.Close()
	}
}
