package types

import "github.com/shopspring/decimal"

// Round2 rounds v to 2 decimal places, half away from zero, on the exact
// binary value of v. 1.005 is stored as 1.00499999..., so it rounds to 1.
func Round2(v float64) float64 {
	// An exponent below any float64's needs yields its exact expansion.
	return decimal.NewFromFloatWithExponent(v, -1100).Round(2).InexactFloat64()
}
