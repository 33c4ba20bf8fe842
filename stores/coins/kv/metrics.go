package kv

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusKVReads  *prometheus.CounterVec
	prometheusKVWrites *prometheus.CounterVec
	prometheusKVErrors *prometheus.CounterVec

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusKVReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins_kv",
			Name:      "reads",
			Help:      "Number of reads done to the key-value coins store",
		},
		[]string{
			"engine",
			"function",
		},
	)
	prometheusKVWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins_kv",
			Name:      "writes",
			Help:      "Number of keys written or deleted in the key-value coins store",
		},
		[]string{
			"engine",
		},
	)
	prometheusKVErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldnode",
			Subsystem: "coins_kv",
			Name:      "errors",
			Help:      "Number of key-value coins store errors",
		},
		[]string{
			"engine",
			"function", // function raising the error
		},
	)
}
