package services

import (
	"github.com/shopspring/decimal"
)

// American odds are not a linear price scale: the quoted number jumps from
// -100 to +100 across even money, so naive subtraction overstates any
// zero-crossing move by roughly 100x (-101 -> +101 is a 2-point move, not
// 202). CorrectedOddsDelta measures the distance actually traveled.
func CorrectedOddsDelta(prev, curr int) int {
	// Same sign: ordinary arithmetic is exact.
	if (prev >= 0) == (curr >= 0) {
		return curr - prev
	}

	if prev < 0 && curr > 0 {
		// Crossed from favorite toward underdog: distance from prev to
		// even money plus distance from even money to curr.
		return (curr - 100) + (absInt(prev) - 100)
	}

	// Crossed from underdog toward favorite: negation of the swapped case.
	return -((prev - 100) + (absInt(curr) - 100))
}

// NaiveOddsDelta is the uncorrected subtraction, stored for diagnostics.
func NaiveOddsDelta(prev, curr int) int {
	return curr - prev
}

// ImpliedProbability converts American odds to the implied win probability
// in [0,1], vig included.
func ImpliedProbability(odds int) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	if odds < 0 {
		mag := decimal.NewFromInt(int64(-odds))
		return mag.Div(mag.Add(hundred))
	}
	o := decimal.NewFromInt(int64(odds))
	return hundred.Div(o.Add(hundred))
}

// ProfitMultiplier returns profit per unit staked for a winning bet at the
// given American odds: odds/100 for underdogs, 100/|odds| for favorites.
func ProfitMultiplier(odds int) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	if odds > 0 {
		return decimal.NewFromInt(int64(odds)).Div(hundred)
	}
	return hundred.Div(decimal.NewFromInt(int64(-odds)))
}

// ArbitrageProfitPercent returns the guaranteed profit percentage when the
// combined implied probability of two complementary outcomes is below 1,
// or zero when no edge exists.
func ArbitrageProfitPercent(combinedImplied decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if combinedImplied.LessThanOrEqual(decimal.Zero) || combinedImplied.GreaterThanOrEqual(one) {
		return decimal.Zero
	}
	return one.Div(combinedImplied).Sub(one).Mul(decimal.NewFromInt(100))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
