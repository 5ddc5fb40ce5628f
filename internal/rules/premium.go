package rules

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PercentagePremium returns basePrice × persitage / 100 rounded half-to-even
// to two decimal places.
func PercentagePremium(basePrice, persitage decimal.Decimal) decimal.Decimal {
	return basePrice.Mul(persitage).Div(hundred).RoundBank(2)
}

// FlatPremium returns a health rule's price untransformed.
func FlatPremium(price decimal.Decimal) decimal.Decimal {
	return price
}
