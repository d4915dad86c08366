package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/store"
)

// CustomerCache keeps recently seen customers in memory so segment reads can
// hydrate member ids without a full table scan. Backed by otter (S3-FIFO).
type CustomerCache struct {
	store otter.Cache[string, *store.Customer]
}

// NewCustomerCache builds the cache.
// capacity: Max number of customers (hard cap to prevent OOM).
// ttl: staleness bound; customer edits land through upserts, which refresh entries.
func NewCustomerCache(capacity int, ttl time.Duration) (*CustomerCache, error) {
	c, err := otter.MustBuilder[string, *store.Customer](capacity).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return &CustomerCache{store: c}, nil
}

// Get returns a cached customer.
func (c *CustomerCache) Get(id string) (*store.Customer, bool) {
	v, ok := c.store.Get(id)
	if ok {
		observability.SegmentCustomerCacheHits.Inc()
	} else {
		observability.SegmentCustomerCacheMisses.Inc()
	}
	return v, ok
}

// Set adds or replaces a customer.
func (c *CustomerCache) Set(customer *store.Customer) {
	if customer == nil {
		return
	}
	c.store.Set(customer.ID, customer)
}

// SetMany loads a batch, typically the full customer list of a materialization.
func (c *CustomerCache) SetMany(customers []*store.Customer) {
	for _, cust := range customers {
		c.Set(cust)
	}
}

// Del removes a customer.
func (c *CustomerCache) Del(id string) {
	c.store.Delete(id)
}

// Len returns the number of cached customers.
func (c *CustomerCache) Len() int {
	return c.store.Size()
}

// RunMetricsCollector samples otter statistics until ctx is cancelled.
func (c *CustomerCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.store.Stats()
			observability.SegmentCustomerCacheItems.Set(float64(c.store.Size()))
			observability.SegmentCustomerCacheEvictions.Set(float64(stats.EvictedCount()))
			observability.SegmentCustomerCacheRejected.Set(float64(stats.RejectedSets()))
		}
	}
}

// Close gracefully shuts down the cache and its background cleanup goroutines.
func (c *CustomerCache) Close() {
	c.store.Close()
}
