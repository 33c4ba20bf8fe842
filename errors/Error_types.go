package errors

var (
	ErrUnknown               = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument       = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrThresholdExceeded     = New(ERR_THRESHOLD_EXCEEDED, "threshold exceeded")
	ErrNotFound              = New(ERR_NOT_FOUND, "not found")
	ErrProcessing            = New(ERR_PROCESSING, "error processing")
	ErrConfiguration         = New(ERR_CONFIGURATION, "configuration error")
	ErrContext               = New(ERR_CONTEXT, "context error")
	ErrContextCanceled       = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError                 = New(ERR_ERROR, "generic error")
	ErrBlockNotFound         = New(ERR_BLOCK_NOT_FOUND, "block not found")
	ErrBlockInvalid          = New(ERR_BLOCK_INVALID, "block invalid")
	ErrBlockError            = New(ERR_BLOCK_ERROR, "block error")
	ErrTxNotFound            = New(ERR_TX_NOT_FOUND, "tx not found")
	ErrTxInvalid             = New(ERR_TX_INVALID, "tx invalid")
	ErrTxInvalidDoubleSpend  = New(ERR_TX_INVALID_DOUBLE_SPEND, "tx invalid double spend")
	ErrTxAlreadyExists       = New(ERR_TX_ALREADY_EXISTS, "tx already exists")
	ErrTxConflict            = New(ERR_TX_CONFLICT, "tx conflicts with mempool")
	ErrTxRecentlyEvicted     = New(ERR_TX_RECENTLY_EVICTED, "tx recently evicted")
	ErrTxExpired             = New(ERR_TX_EXPIRED, "tx expired")
	ErrTxError               = New(ERR_TX_ERROR, "tx error")
	ErrServiceUnavailable    = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceNotStarted     = New(ERR_SERVICE_NOT_STARTED, "service not started")
	ErrServiceError          = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageUnavailable    = New(ERR_STORAGE_UNAVAILABLE, "storage unavailable")
	ErrStorageNotStarted     = New(ERR_STORAGE_NOT_STARTED, "storage not started")
	ErrStorageError          = New(ERR_STORAGE_ERROR, "storage error")
	ErrSerialization         = New(ERR_SERIALIZATION, "serialization error")
	ErrCoinsNotFound         = New(ERR_COINS_NOT_FOUND, "coins not found")
	ErrDuplicateNullifier    = New(ERR_SHIELDED_DUPLICATE_NULLIFIER, "nullifier already spent")
	ErrUnknownAnchor         = New(ERR_SHIELDED_UNKNOWN_ANCHOR, "unknown anchor")
	ErrHistoryInvalid        = New(ERR_HISTORY_INVALID, "invalid history tree state")
	ErrAnchorNotFound        = New(ERR_ANCHOR_NOT_FOUND, "anchor not found")
	ErrShieldedUnsatisfied   = New(ERR_SHIELDED_REQUIREMENT_UNSATISFIED, "shielded requirements not met")
	ErrMempoolFull           = New(ERR_MEMPOOL_FULL, "mempool full")
	ErrFeeEstimatesInvalid   = New(ERR_FEE_ESTIMATES_INVALID, "invalid fee estimates")
	ErrMempoolInconsistent   = New(ERR_MEMPOOL_INCONSISTENT, "mempool inconsistent")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewThresholdExceededError(message string, params ...interface{}) error {
	return New(ERR_THRESHOLD_EXCEEDED, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewError(message string, params ...interface{}) error {
	return New(ERR_ERROR, message, params...)
}
func NewBlockNotFoundError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_NOT_FOUND, message, params...)
}
func NewBlockInvalidError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_INVALID, message, params...)
}
func NewBlockError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_ERROR, message, params...)
}
func NewTxNotFoundError(message string, params ...interface{}) error {
	return New(ERR_TX_NOT_FOUND, message, params...)
}
func NewTxInvalidError(message string, params ...interface{}) error {
	return New(ERR_TX_INVALID, message, params...)
}
func NewTxInvalidDoubleSpendError(message string, params ...interface{}) error {
	return New(ERR_TX_INVALID_DOUBLE_SPEND, message, params...)
}
func NewTxAlreadyExistsError(message string, params ...interface{}) error {
	return New(ERR_TX_ALREADY_EXISTS, message, params...)
}
func NewTxConflictError(message string, params ...interface{}) error {
	return New(ERR_TX_CONFLICT, message, params...)
}
func NewTxRecentlyEvictedError(message string, params ...interface{}) error {
	return New(ERR_TX_RECENTLY_EVICTED, message, params...)
}
func NewTxExpiredError(message string, params ...interface{}) error {
	return New(ERR_TX_EXPIRED, message, params...)
}
func NewTxError(message string, params ...interface{}) error {
	return New(ERR_TX_ERROR, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceNotStartedError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_NOT_STARTED, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageUnavailableError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_UNAVAILABLE, message, params...)
}
func NewStorageNotStartedError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_NOT_STARTED, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
func NewSerializationError(message string, params ...interface{}) error {
	return New(ERR_SERIALIZATION, message, params...)
}
func NewCoinsNotFoundError(message string, params ...interface{}) error {
	return New(ERR_COINS_NOT_FOUND, message, params...)
}
func NewDuplicateNullifierError(message string, params ...interface{}) error {
	return New(ERR_SHIELDED_DUPLICATE_NULLIFIER, message, params...)
}
func NewUnknownAnchorError(message string, params ...interface{}) error {
	return New(ERR_SHIELDED_UNKNOWN_ANCHOR, message, params...)
}
func NewHistoryInvalidError(message string, params ...interface{}) error {
	return New(ERR_HISTORY_INVALID, message, params...)
}
func NewAnchorNotFoundError(message string, params ...interface{}) error {
	return New(ERR_ANCHOR_NOT_FOUND, message, params...)
}
func NewMempoolFullError(message string, params ...interface{}) error {
	return New(ERR_MEMPOOL_FULL, message, params...)
}
func NewFeeEstimatesInvalidError(message string, params ...interface{}) error {
	return New(ERR_FEE_ESTIMATES_INVALID, message, params...)
}
func NewMempoolInconsistentError(message string, params ...interface{}) error {
	return New(ERR_MEMPOOL_INCONSISTENT, message, params...)
}
