// Package errors provides the error type used across the node and helpers for categorizing errors.
package errors

import (
	"context"
	"errors"
)

// IsRetryableError determines if an error is transient and the operation should be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check if context was cancelled - not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_SERVICE_UNAVAILABLE,
			ERR_STORAGE_UNAVAILABLE:
			return true
		}
	}

	return false
}

// IsStorageError reports whether err originates from a backing store failure. Callers on the
// validation path treat these as "cannot determine validity" and reject.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_STORAGE_ERROR,
			ERR_STORAGE_UNAVAILABLE,
			ERR_STORAGE_NOT_STARTED,
			ERR_SERIALIZATION:
			return true
		}
	}

	return false
}

// IsRejectionError reports whether err is a per-transaction rejection that should be reported to the
// submitter rather than escalated.
func IsRejectionError(err error) bool {
	if err == nil {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_TX_INVALID,
			ERR_TX_INVALID_DOUBLE_SPEND,
			ERR_TX_ALREADY_EXISTS,
			ERR_TX_CONFLICT,
			ERR_TX_RECENTLY_EVICTED,
			ERR_TX_EXPIRED,
			ERR_MEMPOOL_FULL,
			ERR_SHIELDED_DUPLICATE_NULLIFIER,
			ERR_SHIELDED_UNKNOWN_ANCHOR,
			ERR_SHIELDED_REQUIREMENT_UNSATISFIED:
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var tErr *Error
	if As(err, &tErr) {
		if tErr.Code() == ERR_CONTEXT_CANCELED || tErr.Code() == ERR_CONTEXT {
			return true
		}
	}

	return false
}

// GetErrorCategory returns a string representing the category of the error.
// This is useful for logging and metrics labels.
func GetErrorCategory(err error) string {
	if err == nil {
		return "none"
	}

	if IsContextError(err) {
		return "context"
	}

	var tErr *Error
	if As(err, &tErr) {
		// Group by error code ranges
		code := tErr.Code()
		switch {
		case code >= 10 && code <= 19:
			return "block"
		case code >= 30 && code <= 49:
			return "transaction"
		case code >= 50 && code <= 59:
			return "service"
		case code >= 60 && code <= 69:
			return "storage"
		case code >= 70 && code <= 79:
			return "coins"
		case code >= 80 && code <= 89:
			return "mempool"
		}
	}

	return "unknown"
}
