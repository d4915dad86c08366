package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here, so the refresher binary also
// exports the control plane series with zero values.

// namespace defines the global prefix for all metrics (e.g., herald_...).
const namespace = "herald"

// storeLatencyBuckets covers single-row KV and Postgres round trips.
// Range: 1ms to 1s.
var storeLatencyBuckets = []float64{.001, .002, .005, .010, .025, .050, .100, .250, .500, 1}

var (
	// -------------------------------------------------------------------------
	// CONTROL PLANE (HTTP)
	// -------------------------------------------------------------------------

	// ControlPlaneReqDuration measures the latency of HTTP requests.
	// Metric: herald_control_plane_http_handling_seconds
	ControlPlaneReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "control_plane",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in Control Plane",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// ControlPlaneReqTotal counts the total number of HTTP requests.
	// Metric: herald_control_plane_http_requests_total
	ControlPlaneReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control_plane",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in Control Plane",
	}, []string{"method", "path", "code"})

	// -------------------------------------------------------------------------
	// CAMPAIGN PIPELINE
	// -------------------------------------------------------------------------

	// CampaignsDelivered counts Deliver calls that reached the fan-out stage.
	// Metric: herald_campaign_deliveries_total
	CampaignsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "campaign",
		Name:      "deliveries_total",
		Help:      "Total campaigns dispatched",
	})

	// MessagesDispatched counts per-message vendor outcomes.
	// Metric: herald_campaign_messages_dispatched_total{status="SENT|FAILED"}
	MessagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "campaign",
		Name:      "messages_dispatched_total",
		Help:      "Total messages handed to the vendor gateway, by resulting status",
	}, []string{"status"})

	// DispatchDuration measures a whole campaign fan-out.
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "campaign",
		Name:      "dispatch_duration_seconds",
		Help:      "Time taken to dispatch every message of a campaign",
		Buckets:   prometheus.DefBuckets,
	})

	// SegmentMaterializationDuration measures rule evaluation over the full customer set.
	// Metric: herald_segment_materialization_duration_seconds
	SegmentMaterializationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "materialization_duration_seconds",
		Help:      "Time taken to evaluate a segment against every customer",
		Buckets:   prometheus.DefBuckets,
	})

	// SegmentCustomerCacheHits / Misses track the otter customer cache used for hydration.
	SegmentCustomerCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "customer_cache_hits_total",
		Help:      "Total customer cache hits during segment hydration",
	})

	SegmentCustomerCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "customer_cache_misses_total",
		Help:      "Total customer cache misses during segment hydration",
	})

	// SegmentCustomerCacheItems, Evictions and Rejected are sampled from otter stats.
	SegmentCustomerCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "customer_cache_items_count",
		Help:      "Current number of customers held in the cache",
	})

	SegmentCustomerCacheEvictions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "customer_cache_evictions_total",
		Help:      "Cumulative customers evicted from the cache",
	})

	SegmentCustomerCacheRejected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "customer_cache_rejected_total",
		Help:      "Cumulative cache writes rejected by the admission policy",
	})

	// -------------------------------------------------------------------------
	// VENDOR (simulated gateway + receipts)
	// -------------------------------------------------------------------------

	// VendorSends counts gateway calls by result (accepted, rejected).
	// Metric: herald_vendor_sends_total
	VendorSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "vendor",
		Name:      "sends_total",
		Help:      "Total simulated vendor sends",
	}, []string{"result"})

	// VendorPendingReceipts is the number of scheduled receipts not yet fired.
	VendorPendingReceipts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "vendor",
		Name:      "pending_receipts",
		Help:      "Current number of delivery receipts waiting on their timer or a worker",
	})

	// ReceiptsProcessed counts receipt handler outcomes (applied, ignored, not_ready).
	// Metric: herald_receipt_processed_total
	ReceiptsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receipt",
		Name:      "processed_total",
		Help:      "Total delivery receipts handled, by outcome",
	}, []string{"outcome"})

	// ReceiptsDropped counts receipts abandoned after exhausting redelivery attempts.
	ReceiptsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receipt",
		Name:      "dropped_total",
		Help:      "Total delivery receipts dropped after all redelivery attempts",
	})

	// -------------------------------------------------------------------------
	// STORE (primary vs fallback)
	// -------------------------------------------------------------------------

	// StoreFallbackOps counts operations served by the fallback backend.
	// Metric: herald_store_fallback_operations_total{collection,op="read|write|replay"}
	StoreFallbackOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "fallback_operations_total",
		Help:      "Total operations served by or mirrored to the fallback store",
	}, []string{"collection", "op"})

	// StorePrimaryAvailable is 1 while the primary backend is considered reachable.
	StorePrimaryAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "primary_available",
		Help:      "1 if the primary store answered the last availability probe, 0 otherwise",
	})

	// FallbackKVDuration measures raw KV round trips per driver.
	FallbackKVDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "fallback",
		Name:      "kv_duration_seconds",
		Help:      "Time taken by fallback key-value operations",
		Buckets:   storeLatencyBuckets,
	}, []string{"driver", "op"})

	// -------------------------------------------------------------------------
	// REFRESHER (Workers)
	// -------------------------------------------------------------------------

	// RefresherCycleDuration measures one pass over every segment.
	// Metric: herald_refresher_cycle_duration_seconds
	RefresherCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "refresher",
		Name:      "cycle_duration_seconds",
		Help:      "Time taken to re-materialize every segment",
		Buckets:   prometheus.DefBuckets,
	})

	RefresherSegmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "refresher",
		Name:      "segments_total",
		Help:      "Total segment refreshes attempted by the worker",
	}, []string{"status"}) // success, fail

	// -------------------------------------------------------------------------
	// INFRASTRUCTURE (pools)
	// -------------------------------------------------------------------------

	// DBPoolConnections mirrors pgxpool.Stat by state (max, total, idle, in_use).
	// Metric: herald_database_pool_connections
	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "Postgres pool connections by state",
	}, []string{"state"})

	// The pgx counters are cumulative inside the pool; gauges mirror them as-is.
	DBPoolAcquireCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Cumulative successful connection acquires",
	})

	DBPoolAcquireDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_duration_seconds_total",
		Help:      "Cumulative time spent acquiring connections",
	})

	DBPoolEmptyAcquire = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_empty_acquire_total",
		Help:      "Cumulative acquires that waited because the pool was empty",
	})

	// RedisPoolConnections mirrors redis.PoolStats by state (total, idle, stale).
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Redis pool connections by state",
	}, []string{"state"})

	RedisPoolTimeouts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_timeouts_total",
		Help:      "Cumulative Redis pool wait timeouts",
	})

	RedisPoolHits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_hits_total",
		Help:      "Cumulative times a free connection was found in the pool",
	})

	RedisPoolMisses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_misses_total",
		Help:      "Cumulative times a new connection had to be dialed",
	})
)
