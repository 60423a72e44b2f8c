package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttempts tracks operation attempts made by the retry loop
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absenta_retry_attempts_total",
			Help: "Total number of operation attempts by outcome",
		},
		[]string{"outcome"}, // success, error, timeout
	)

	// RetryChains tracks completed retry chains
	RetryChains = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absenta_retry_chains_total",
			Help: "Total number of retry chains by result",
		},
		[]string{"result"}, // success, failed, queued
	)

	// OfflineQueueDepth tracks operations waiting for connectivity
	OfflineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "absenta_offline_queue_depth",
			Help: "Number of operations waiting in the offline queue",
		},
	)

	// OfflineQueueReplays tracks replayed queued operations
	OfflineQueueReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absenta_offline_queue_replays_total",
			Help: "Total number of queued operation replays by result",
		},
		[]string{"result"}, // success, requeued, dropped
	)

	// CacheLookups tracks durable cache reads per tier
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absenta_cache_lookups_total",
			Help: "Total number of durable cache lookups",
		},
		[]string{"tier", "result"}, // memory|durable, hit|miss|error
	)

	// CacheWriteErrors tracks swallowed durable tier write failures
	CacheWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "absenta_cache_write_errors_total",
			Help: "Total number of durable tier write failures",
		},
	)

	// BatchesLoaded tracks batches fetched by progressive loads
	BatchesLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "absenta_batches_loaded_total",
			Help: "Total number of non-empty batches loaded",
		},
	)

	// OperationDuration tracks measured operation latency
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "absenta_operation_duration_seconds",
			Help:    "Measured operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name", "status"},
	)

	// NetworkOnline is 1 while the agent considers itself online
	NetworkOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "absenta_network_online",
			Help: "Connectivity state (1 = online, 0 = offline)",
		},
	)

	// ProbeRTT tracks connectivity probe round-trip time
	ProbeRTT = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "absenta_probe_rtt_seconds",
			Help:    "Connectivity probe round-trip time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DBConnectionPoolUsage tracks postgres pool usage when that backend is used
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "absenta_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
