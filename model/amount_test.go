package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     FeeRate
		size     int
		expected Amount
	}{
		{"exact", NewFeeRatePerK(1000), 250, 250},
		{"rounds down", NewFeeRatePerK(100), 1999, 199},
		{"never zero for positive rate", NewFeeRatePerK(1), 10, 1},
		{"zero size", NewFeeRatePerK(1000), 0, 0},
		{"zero rate", NewFeeRatePerK(0), 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rate.GetFee(tt.size))
		})
	}
}

func TestNewFeeRate(t *testing.T) {
	assert.Equal(t, Amount(4000), NewFeeRate(1000, 250).GetFeePerK())
	assert.Equal(t, Amount(0), NewFeeRate(1000, 0).GetFeePerK())
	assert.True(t, NewFeeRate(10, 1000).Less(NewFeeRate(11, 1000)))
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "1.00000000", COIN.String())
	assert.Equal(t, "-0.00000150", Amount(-150).String())
	assert.True(t, MoneyRange(MaxMoney))
	assert.False(t, MoneyRange(-1))
}
