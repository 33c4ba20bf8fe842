package errors

import "strconv"

// ERR is the numeric error code carried by every *Error.
// Codes are grouped in ranges: 0-9 generic, 10-19 block, 30-49 transaction, 50-59 service,
// 60-69 storage, 70-79 coins and shielded state, 80-89 mempool.
type ERR int32

const (
	ERR_UNKNOWN            ERR = 0
	ERR_INVALID_ARGUMENT   ERR = 1
	ERR_THRESHOLD_EXCEEDED ERR = 2
	ERR_NOT_FOUND          ERR = 3
	ERR_PROCESSING         ERR = 4
	ERR_CONFIGURATION      ERR = 5
	ERR_CONTEXT            ERR = 6
	ERR_CONTEXT_CANCELED   ERR = 7
	ERR_ERROR              ERR = 9

	ERR_BLOCK_NOT_FOUND ERR = 10
	ERR_BLOCK_INVALID   ERR = 11
	ERR_BLOCK_ERROR     ERR = 12

	ERR_TX_NOT_FOUND            ERR = 30
	ERR_TX_INVALID              ERR = 31
	ERR_TX_INVALID_DOUBLE_SPEND ERR = 32
	ERR_TX_ALREADY_EXISTS       ERR = 33
	ERR_TX_CONFLICT             ERR = 34
	ERR_TX_RECENTLY_EVICTED     ERR = 35
	ERR_TX_EXPIRED              ERR = 36
	ERR_TX_ERROR                ERR = 39

	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_NOT_STARTED ERR = 51
	ERR_SERVICE_ERROR       ERR = 52

	ERR_STORAGE_UNAVAILABLE ERR = 60
	ERR_STORAGE_NOT_STARTED ERR = 61
	ERR_STORAGE_ERROR       ERR = 62
	ERR_SERIALIZATION       ERR = 63

	ERR_COINS_NOT_FOUND                  ERR = 70
	ERR_SHIELDED_DUPLICATE_NULLIFIER     ERR = 71
	ERR_SHIELDED_UNKNOWN_ANCHOR          ERR = 72
	ERR_HISTORY_INVALID                  ERR = 73
	ERR_ANCHOR_NOT_FOUND                 ERR = 74
	ERR_SHIELDED_REQUIREMENT_UNSATISFIED ERR = 75

	ERR_MEMPOOL_FULL          ERR = 80
	ERR_FEE_ESTIMATES_INVALID ERR = 81
	ERR_MEMPOOL_INCONSISTENT  ERR = 82
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "THRESHOLD_EXCEEDED",
	3:  "NOT_FOUND",
	4:  "PROCESSING",
	5:  "CONFIGURATION",
	6:  "CONTEXT",
	7:  "CONTEXT_CANCELED",
	9:  "ERROR",
	10: "BLOCK_NOT_FOUND",
	11: "BLOCK_INVALID",
	12: "BLOCK_ERROR",
	30: "TX_NOT_FOUND",
	31: "TX_INVALID",
	32: "TX_INVALID_DOUBLE_SPEND",
	33: "TX_ALREADY_EXISTS",
	34: "TX_CONFLICT",
	35: "TX_RECENTLY_EVICTED",
	36: "TX_EXPIRED",
	39: "TX_ERROR",
	50: "SERVICE_UNAVAILABLE",
	51: "SERVICE_NOT_STARTED",
	52: "SERVICE_ERROR",
	60: "STORAGE_UNAVAILABLE",
	61: "STORAGE_NOT_STARTED",
	62: "STORAGE_ERROR",
	63: "SERIALIZATION",
	70: "COINS_NOT_FOUND",
	71: "SHIELDED_DUPLICATE_NULLIFIER",
	72: "SHIELDED_UNKNOWN_ANCHOR",
	73: "HISTORY_INVALID",
	74: "ANCHOR_NOT_FOUND",
	75: "SHIELDED_REQUIREMENT_UNSATISFIED",
	80: "MEMPOOL_FULL",
	81: "FEE_ESTIMATES_INVALID",
	82: "MEMPOOL_INCONSISTENT",
}

var ERR_value = func() map[string]int32 {
	m := make(map[string]int32, len(ERR_name))
	for k, v := range ERR_name {
		m[v] = k
	}

	return m
}()

func (x ERR) Enum() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}

func (x ERR) String() string {
	return x.Enum()
}
