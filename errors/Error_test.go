package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.Code())
	require.Equal(t, "resource not found", err.Message())

	secondErr := New(ERR_INVALID_ARGUMENT, "[AccessCoins][%s] failed to read coins", "_test_string_", err)
	thirdErr := New(ERR_TX_INVALID_DOUBLE_SPEND, "[CheckShieldedRequirements][%s] nullifier spent", "_test_string_", secondErr)
	anotherErr := New(ERR_TX_INVALID_DOUBLE_SPEND, "another error")
	fourthErr := New(ERR_SERVICE_ERROR, "older error", thirdErr)
	fifthErr := New(ERR_BLOCK_INVALID, "block invalid", fourthErr)

	require.True(t, anotherErr.Is(thirdErr))
	require.True(t, fourthErr.Is(New(ERR_TX_INVALID_DOUBLE_SPEND, "")))
	require.True(t, fourthErr.Is(ErrTxInvalidDoubleSpend))

	require.True(t, fourthErr.Is(err))
	require.True(t, fifthErr.Is(thirdErr))
	require.True(t, fifthErr.Is(err))

	require.False(t, anotherErr.Is(fourthErr))
	require.False(t, fifthErr.Is(ErrBlockNotFound))
}

func Test_MessageFormatting(t *testing.T) {
	err := New(ERR_STORAGE_ERROR, "failed to read %s at %d", "coins", 7)
	require.Equal(t, "failed to read coins at 7", err.Message())
	require.Nil(t, err.WrappedErr())

	wrapped := New(ERR_STORAGE_ERROR, "failed to read %s", "coins", fmt.Errorf("disk gone"))
	require.Equal(t, "failed to read coins", wrapped.Message())
	require.EqualError(t, wrapped.WrappedErr(), "disk gone")
	require.Contains(t, wrapped.Error(), "STORAGE_ERROR")
	require.Contains(t, wrapped.Error(), "disk gone")
}

func Test_InvalidCode(t *testing.T) {
	err := New(ERR(999), "whatever")
	require.Equal(t, "invalid error code", err.Message())
	require.Equal(t, "999", ERR(999).Enum())
}

func Test_StdlibCompat(t *testing.T) {
	base := NewStorageError("leveldb write failed", context.DeadlineExceeded)
	require.True(t, errors.Is(base, ErrStorageError))
	require.True(t, errors.Is(base, context.DeadlineExceeded))

	var tErr *Error
	require.True(t, As(base, &tErr))
	assert.Equal(t, ERR_STORAGE_ERROR, tErr.Code())

	fmtErr := fmt.Errorf("context: %w", base)
	require.True(t, Is(fmtErr, ErrStorageError))
}

func Test_ShieldedReqData(t *testing.T) {
	err := NewShieldedReqError(ERR_SHIELDED_DUPLICATE_NULLIFIER, "sapling", "duplicate-nullifier", 2)
	require.True(t, Is(err, ErrDuplicateNullifier))

	var data *ShieldedReqErrData
	require.True(t, AsData(err, &data))
	assert.Equal(t, "sapling", data.Pool)
	assert.Equal(t, 2, data.Index)
	assert.Equal(t, "sapling", err.GetData("pool"))

	decoded, decodeErr := GetErrorData(ERR_SHIELDED_DUPLICATE_NULLIFIER, data.EncodeErrorData())
	require.NoError(t, decodeErr)
	assert.Equal(t, data, decoded)
}

func Test_ErrorData(t *testing.T) {
	err := New(ERR_PROCESSING, "processing")
	err.SetData("txid", "abc")
	assert.Equal(t, "abc", err.GetData("txid"))
	assert.Contains(t, err.Error(), "abc")
}

func Test_Join(t *testing.T) {
	require.Nil(t, Join(nil, nil))

	joined := Join(errors.New("a"), nil, errors.New("b"))
	require.EqualError(t, joined, "a, b")
}

func Test_Categories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category string
	}{
		{"nil", nil, "none"},
		{"context", context.Canceled, "context"},
		{"storage", NewStorageError("x"), "storage"},
		{"tx", NewTxConflictError("x"), "transaction"},
		{"coins", NewDuplicateNullifierError("x"), "coins"},
		{"mempool", NewMempoolFullError("x"), "mempool"},
		{"plain", errors.New("x"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, GetErrorCategory(tt.err))
		})
	}

	assert.True(t, IsStorageError(NewStorageError("x")))
	assert.False(t, IsStorageError(NewTxInvalidError("x")))
	assert.True(t, IsRejectionError(NewTxRecentlyEvictedError("x")))
	assert.True(t, IsRetryableError(NewStorageUnavailableError("x")))
	assert.False(t, IsRetryableError(context.Canceled))
}
