package model

import (
	"fmt"
)

// Amount is a value in zatoshis.
type Amount int64

const (
	COIN     Amount = 100_000_000
	CENT     Amount = 1_000_000
	MaxMoney Amount = 21_000_000 * COIN
)

func MoneyRange(v Amount) bool {
	return v >= 0 && v <= MaxMoney
}

func (a Amount) String() string {
	sign := ""
	v := int64(a)

	if v < 0 {
		sign = "-"
		v = -v
	}

	return fmt.Sprintf("%s%d.%08d", sign, v/int64(COIN), v%int64(COIN))
}

// FeeRate is a fee expressed in zatoshis per 1000 bytes.
type FeeRate struct {
	zatoshisPerK Amount
}

func NewFeeRatePerK(perK Amount) FeeRate {
	return FeeRate{zatoshisPerK: perK}
}

// NewFeeRate derives the rate paid by a transaction of the given size.
func NewFeeRate(fee Amount, size int) FeeRate {
	if size <= 0 {
		return FeeRate{}
	}

	return FeeRate{zatoshisPerK: fee * 1000 / Amount(size)}
}

// GetFee returns the fee for size bytes. A non-zero rate never rounds down to a zero fee.
func (f FeeRate) GetFee(size int) Amount {
	fee := f.zatoshisPerK * Amount(size) / 1000

	if fee == 0 && size != 0 {
		if f.zatoshisPerK > 0 {
			fee = 1
		}

		if f.zatoshisPerK < 0 {
			fee = -1
		}
	}

	return fee
}

func (f FeeRate) GetFeePerK() Amount {
	return f.zatoshisPerK
}

func (f FeeRate) Less(other FeeRate) bool {
	return f.zatoshisPerK < other.zatoshisPerK
}

func (f FeeRate) String() string {
	return fmt.Sprintf("%s ZEC/kB", f.zatoshisPerK)
}
