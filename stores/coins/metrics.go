package coins

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusCoinsCacheHits          prometheus.Counter
	prometheusCoinsCacheMisses        prometheus.Counter
	prometheusCoinsCacheFlushes       prometheus.Counter
	prometheusCoinsCacheFlushErrors   prometheus.Counter
	prometheusCoinsCacheFlushDuration prometheus.Histogram
	prometheusCoinsCacheUsage         prometheus.Gauge
	prometheusCoinsReadErrors         prometheus.Counter
	prometheusHistoryPreloads         prometheus.Histogram

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusCoinsCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "cache_hits",
			Help:      "Number of coin lookups answered by the cache",
		},
	)
	prometheusCoinsCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "cache_misses",
			Help:      "Number of coin lookups that went to the parent view",
		},
	)
	prometheusCoinsCacheFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "cache_flushes",
			Help:      "Number of successful cache flushes",
		},
	)
	prometheusCoinsCacheFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "cache_flush_errors",
			Help:      "Number of cache flushes rejected by the parent view",
		},
	)
	prometheusCoinsCacheFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "cache_flush_duration_seconds",
			Help:      "Duration of cache flushes",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		},
	)
	prometheusCoinsCacheUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "cache_usage_bytes",
			Help:      "Estimated memory held by the coins cache",
		},
	)
	prometheusCoinsReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "read_errors",
			Help:      "Number of failed reads from the backing store",
		},
	)
	prometheusHistoryPreloads = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shieldnode",
			Subsystem: "coins",
			Name:      "history_preload_nodes",
			Help:      "Number of history nodes loaded per push or pop",
			Buckets:   prometheus.LinearBuckets(1, 8, 10),
		},
	)
}
