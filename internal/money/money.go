// Package money implements the fixed-point rules for reward amounts.
//
// Amounts carry 8 fractional digits and every lossy step truncates toward
// zero, never rounds up. The payment rail counts in raw units, 10^29 per
// display unit.
package money

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// Precision is the number of fractional digits stored per amount.
	Precision int32 = 8
	// RawExponent is log10 of raw units per display unit.
	RawExponent int32 = 29
)

// Truncate drops digits beyond Precision toward zero.
func Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Precision)
}

// PerKill returns kills × rate truncated to Precision.
func PerKill(kills int64, rate decimal.Decimal) decimal.Decimal {
	if kills <= 0 {
		return decimal.Zero
	}

	return Truncate(decimal.NewFromInt(kills).Mul(rate))
}

// Scale returns amount × num / den truncated to Precision. The division is
// carried out exactly to Precision digits, so there is no intermediate
// rounding that could push the result up by one unit. A non-positive den
// yields zero.
func Scale(amount decimal.Decimal, num, den int64) decimal.Decimal {
	if den <= 0 || num <= 0 || !amount.IsPositive() {
		return decimal.Zero
	}

	if num >= den {
		return Truncate(amount)
	}

	q, _ := amount.Mul(decimal.NewFromInt(num)).QuoRem(decimal.NewFromInt(den), Precision)

	return q
}

// ToRaw converts a display amount into raw rail units, truncating toward
// zero. Negative amounts clamp to zero.
func ToRaw(d decimal.Decimal) *big.Int {
	if !d.IsPositive() {
		return new(big.Int)
	}

	return d.Shift(RawExponent).BigInt()
}

// FromRaw converts raw rail units back into display units exactly.
func FromRaw(raw *big.Int) decimal.Decimal {
	if raw == nil || raw.Sign() <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(raw, -RawExponent)
}

// ParseRaw parses a base-10 raw amount as returned by the rail node.
func ParseRaw(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}

	return v, true
}

// Sum adds amounts; an empty list sums to zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}

	return total
}
