package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// errNilPool is reported when the service runs without a primary database.
var errNilPool = errors.New("database pool is not configured")

// HealthChecker implements the observability.Checker interface for PostgreSQL.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker creates a new health checker for the given pool.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Name returns the component name.
func (h *HealthChecker) Name() string {
	return "postgres"
}

// Check acquires a connection and pings it.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h == nil || h.pool == nil {
		return errNilPool
	}
	return h.pool.Ping(ctx)
}
