package mempool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusMempoolTransactions prometheus.Gauge
	prometheusMempoolBytes        prometheus.Gauge
	prometheusMempoolUsage        prometheus.Gauge
	prometheusMempoolCost         prometheus.Gauge
	prometheusMempoolAdded        prometheus.Counter
	prometheusMempoolRemoved      *prometheus.CounterVec
	prometheusMempoolEvicted      prometheus.Counter
	prometheusMempoolCheck        prometheus.Histogram

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

// removal reasons, used as the label of prometheusMempoolRemoved
const (
	reasonManual   = "manual"
	reasonBlock    = "block"
	reasonConflict = "conflict"
	reasonExpired  = "expired"
	reasonEvicted  = "evicted"
	reasonReorg    = "reorg"
	reasonAnchor   = "anchor"
	reasonBranchID = "branch_id"
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusMempoolTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "transactions",
			Help:      "Number of transactions in the mempool",
		},
	)
	prometheusMempoolBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "bytes",
			Help:      "Total serialized size of the transactions in the mempool",
		},
	)
	prometheusMempoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "usage_bytes",
			Help:      "Approximate heap usage of the mempool",
		},
	)
	prometheusMempoolCost = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "weighted_cost",
			Help:      "Total weighted cost counted against the mempool cost limit",
		},
	)
	prometheusMempoolAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "added",
			Help:      "Number of transactions added to the mempool",
		},
	)
	prometheusMempoolRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "removed",
			Help:      "Number of transactions removed from the mempool, by reason",
		},
		[]string{"reason"},
	)
	prometheusMempoolEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "evicted",
			Help:      "Number of transactions evicted to respect the cost limit",
		},
	)
	prometheusMempoolCheck = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shieldnode",
			Subsystem: "mempool",
			Name:      "check_seconds",
			Help:      "Duration of mempool consistency checks",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
}
