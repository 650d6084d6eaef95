package engine

import "github.com/shopspring/decimal"

// =============================================================================
// ROUNDING - The single rounding rule for every currency amount we output
// =============================================================================

var half = decimal.NewFromFloat(0.5)

// Round applies the association's rounding rule: with f = v - floor(v)
// (so f is always in [0, 1), negative inputs included), round down when
// f < 0.5 and up otherwise.
//
// This is not banker's rounding and not symmetric round-half-away:
// Round(2.5) = 3, Round(2.4999) = 2, Round(-0.1) = 0.
// Total function, never fails.
func Round(v decimal.Decimal) int64 {
	floor := v.Floor()
	f := v.Sub(floor)
	if f.LessThan(half) {
		return floor.IntPart()
	}
	return floor.Add(decimal.NewFromInt(1)).IntPart()
}

// RoundDecimal is Round with a decimal result, for display columns that
// stay in decimal form.
func RoundDecimal(v decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(Round(v))
}
