package promo

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ApplyPercent returns total reduced by percent, rounded to kopecks.
func ApplyPercent(total decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return total.Round(2)
	}
	if percent >= 100 {
		return decimal.Zero
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(percent))).Div(hundred)
	return total.Mul(factor).Round(2)
}

// Breakdown derives the pre-discount price and the discount amount from the
// final paid value: original = final / (1 - percent/100). Orders store only
// the final value, so every discount display goes through this direction.
// A 100% discount cannot be inverted and yields no breakdown.
func Breakdown(finalValue, percent decimal.Decimal) (originalPrice, discountAmount decimal.Decimal) {
	if !percent.IsPositive() || percent.GreaterThanOrEqual(hundred) {
		return finalValue.Round(2), decimal.Zero
	}

	factor := decimal.NewFromInt(1).Sub(percent.Div(hundred))
	original := finalValue.Div(factor)

	originalPrice = original.Round(2)
	discountAmount = original.Sub(finalValue).Round(2)
	return originalPrice, discountAmount
}
