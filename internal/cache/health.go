package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkTimeout bounds a readiness ping so a stalled Redis cannot hold the
// probe past the kubelet deadline.
const checkTimeout = 2 * time.Second

// HealthChecker reports whether the Redis instance behind the redis fallback
// driver answers.
type HealthChecker struct {
	client *redis.Client
}

// NewHealthChecker wraps client. A nil client always reports unhealthy.
func NewHealthChecker(client *redis.Client) *HealthChecker {
	return &HealthChecker{client: client}
}

// Name is the key used in the readiness body.
func (h *HealthChecker) Name() string { return "redis" }

// Check pings Redis within checkTimeout.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return errors.New("redis client is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable, fallback store degraded: %w", err)
	}
	return nil
}
