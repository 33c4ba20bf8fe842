package settings

import (
	"net/url"
	"time"

	"github.com/shieldnode/shieldnode/util/bytesize"
)

type Settings struct {
	ClientName string
	DataFolder string
	Network    string
	LogLevel   string

	// listen addresses, empty to disable
	ProfilerAddr       string
	PrometheusEndpoint string
	PrometheusAddr     string

	Coins   CoinsSettings
	Mempool MempoolSettings
	Policy  PolicySettings
}

type CoinsSettings struct {
	StoreURL             *url.URL
	Logging              bool
	CacheMaxSize         bytesize.ByteSize
	DBTimeout            time.Duration
	PostgresMaxIdleConns int
	PostgresMaxOpenConns int
}

type MempoolSettings struct {
	TxCostLimit                    int64
	EvictionMemoryMinutes          int
	EvictedCapacity                int
	MinTxCost                      int64
	LowFeePenalty                  int64
	SanityCheckProbability         float64
	FeeEstimatesFile               string
	FeeEstimateMaxRollback         int
	FeeEstimateMinRegisteredBlocks int
	MaintenanceInterval            time.Duration
}

type PolicySettings struct {
	// MinRelayTxFee is expressed in zatoshis per 1000 bytes.
	MinRelayTxFee int64
}
