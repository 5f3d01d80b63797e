package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a currency amount to the gateway's integer minor units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts gateway minor units back to a currency amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// SplitFee divides amount into the platform fee (percentage of amount, rounded to paise) and the salon share.
func SplitFee(amount, percentage decimal.Decimal) (platformFee, salonAmount decimal.Decimal) {
	platformFee = amount.Mul(percentage).Div(hundred).Round(2)
	return platformFee, amount.Sub(platformFee)
}
