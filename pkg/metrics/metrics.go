package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts cache lookups by table and result (hit|miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecache_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"table_id", "result"},
	)

	// CacheRefreshes counts cache refreshes by table and outcome (ok|error).
	CacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecache_cache_refreshes_total",
			Help: "Total number of cache refreshes",
		},
		[]string{"table_id", "result"},
	)

	// RefreshDuration measures how long a full mirror rebuild takes.
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablecache_refresh_duration_seconds",
			Help:    "Cache refresh duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table_id"},
	)

	// CompileDuration measures filter compilation latency.
	CompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablecache_filter_compile_duration_seconds",
			Help:    "Filter compilation duration",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
	)

	// ValidationWarnings counts non-strict operator/field-type mismatches.
	ValidationWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecache_filter_validation_warnings_total",
			Help: "Total number of filter validation warnings",
		},
		[]string{"field_type"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablecache_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
