package sql

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusCoinsSQLReads         *prometheus.CounterVec
	prometheusCoinsSQLErrors        *prometheus.CounterVec
	prometheusCoinsSQLBatchDuration prometheus.Histogram

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusCoinsSQLReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sql_coins_reads",
			Help: "Number of coins store reads done to sql",
		},
		[]string{
			"function",
		},
	)
	prometheusCoinsSQLErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sql_coins_errors",
			Help: "Number of coins store sql errors",
		},
		[]string{
			"function", // function raising the error
			"error",    // error returned
		},
	)
	prometheusCoinsSQLBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sql_coins_batch_write_seconds",
			Help:    "Duration of coins store batch writes",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
	)
}
