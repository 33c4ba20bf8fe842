package daemon

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusChainStateHeight      prometheus.Gauge
	prometheusChainStateCacheUsage  prometheus.Gauge
	prometheusChainStateConnect     prometheus.Histogram
	prometheusChainStateDisconnect  prometheus.Histogram
	prometheusChainStateMaintenance prometheus.Histogram
	prometheusChainStateAccepted    prometheus.Counter
	prometheusChainStateRejected    *prometheus.CounterVec

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusChainStateHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldnode",
			Subsystem: "chainstate",
			Name:      "height",
			Help:      "Height of the last connected block",
		},
	)
	prometheusChainStateCacheUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldnode",
			Subsystem: "chainstate",
			Name:      "tip_cache_usage_bytes",
			Help:      "Approximate heap usage of the tip cache",
		},
	)
	prometheusChainStateConnect = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shieldnode",
			Subsystem: "chainstate",
			Name:      "connect_block_seconds",
			Help:      "Duration of block connection, mempool reconciliation included",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	prometheusChainStateDisconnect = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shieldnode",
			Subsystem: "chainstate",
			Name:      "disconnect_block_seconds",
			Help:      "Duration of block disconnection, mempool reconciliation included",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	prometheusChainStateMaintenance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shieldnode",
			Subsystem: "chainstate",
			Name:      "maintenance_seconds",
			Help:      "Duration of periodic maintenance",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	prometheusChainStateAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "chainstate",
			Name:      "accepted_transactions",
			Help:      "Number of transactions accepted into the mempool",
		},
	)
	prometheusChainStateRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "chainstate",
			Name:      "rejected_transactions",
			Help:      "Number of transactions refused by the mempool, by error code",
		},
		[]string{"code"},
	)
}
