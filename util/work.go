package util

import (
	"math/big"
)

var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CalculateWork returns the expected number of hashes needed to meet the compact target nBits.
func CalculateWork(nBits uint32) *big.Int {
	target := CalculateTarget(nBits)
	if target.Sign() <= 0 {
		return new(big.Int)
	}

	// Work done is proportional to 1/difficulty
	return new(big.Int).Div(oneLsh256, new(big.Int).Add(target, big.NewInt(1)))
}

// AddWork accumulates the work of a header on top of prevWork.
func AddWork(prevWork *big.Int, nBits uint32) *big.Int {
	if prevWork == nil {
		return CalculateWork(nBits)
	}

	return new(big.Int).Add(prevWork, CalculateWork(nBits))
}

func CalculateTarget(nBits uint32) *big.Int {
	exponent := nBits >> 24
	mantissa := nBits & 0x007FFFFF

	var target *big.Int

	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target = big.NewInt(int64(mantissa))
	} else {
		target = big.NewInt(int64(mantissa))
		target.Lsh(target, uint(8*(exponent-3)))
	}

	if nBits&0x00800000 != 0 {
		target.Neg(target)
	}

	return target
}
