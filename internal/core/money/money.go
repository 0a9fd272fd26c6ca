// Package money rounds EUR amounts the way invoices print them.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimals. Non-finite input is returned unchanged.
func Round2(v float64) float64 {
	return RoundN(v, 2)
}

func RoundN(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	out, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return out
}

// Mul multiplies two amounts in decimal arithmetic.
func Mul(a, b float64) float64 {
	out, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Float64()
	return out
}

// Sum adds amounts without accumulating binary floating point error.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	out, _ := total.Float64()
	return out
}
