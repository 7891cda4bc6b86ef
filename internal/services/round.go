package services

import (
	"math"

	"github.com/shopspring/decimal"
)

// round2 rounds half away from zero to two decimal places. Non-finite input
// collapses to 0 so reports never carry NaN or Infinity.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// percentOf returns part/whole*100 rounded to two places, 0 when whole is 0.
func percentOf(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		InexactFloat64()
}
