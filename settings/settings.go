package settings

import (
	"time"

	"github.com/shieldnode/shieldnode/util/bytesize"
)

func NewSettings() *Settings {
	return &Settings{
		ClientName: getString("clientName", "shieldnode"),
		DataFolder: getString("dataFolder", "data"),
		Network:    getString("network", "mainnet"),
		LogLevel:   getString("logLevel", "INFO"),

		ProfilerAddr:       getString("profilerAddr", ""),
		PrometheusEndpoint: getString("prometheusEndpoint", "/metrics"),
		PrometheusAddr:     getString("prometheusAddr", ""),

		Coins: CoinsSettings{
			StoreURL:             getURL("coins_store", "sqlite:///coins"),
			Logging:              getBool("coins_logging", false),
			CacheMaxSize:         getByteSize("coins_cacheMaxSize", 450*bytesize.MB),
			DBTimeout:            time.Duration(getInt("coins_dbTimeoutMillis", 5000)) * time.Millisecond,
			PostgresMaxIdleConns: getInt("coins_postgresMaxIdleConns", 10),
			PostgresMaxOpenConns: getInt("coins_postgresMaxOpenConns", 80),
		},
		Mempool: MempoolSettings{
			TxCostLimit:                    getInt64("mempool_txCostLimit", 80_000_000),
			EvictionMemoryMinutes:          getInt("mempool_evictionMemoryMinutes", 60),
			EvictedCapacity:                getInt("mempool_evictedCapacity", 40_000),
			MinTxCost:                      getInt64("mempool_minTxCost", 10_000),
			LowFeePenalty:                  getInt64("mempool_lowFeePenalty", 16_000),
			SanityCheckProbability:         getFloat64("mempool_sanityCheckProbability", 0),
			FeeEstimatesFile:               getString("mempool_feeEstimatesFile", "fee_estimates.dat"),
			FeeEstimateMaxRollback:         getInt("mempool_feeEstimateMaxRollback", 2),
			FeeEstimateMinRegisteredBlocks: getInt("mempool_feeEstimateMinRegisteredBlocks", 3),
			MaintenanceInterval:            time.Duration(getInt("mempool_maintenanceIntervalSeconds", 60)) * time.Second,
		},
		Policy: PolicySettings{
			MinRelayTxFee: getInt64("minrelaytxfee", 100),
		},
	}
}

// EvictionMemory is the window during which an evicted transaction is refused re-admission.
func (s *MempoolSettings) EvictionMemory() time.Duration {
	return time.Duration(s.EvictionMemoryMinutes) * time.Minute
}
