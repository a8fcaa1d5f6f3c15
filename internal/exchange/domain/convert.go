package domain

import "github.com/shopspring/decimal"

// Convert multiplies an amount by a conversion rate and rounds half-up to
// two decimal places. Rounding happens here and nowhere earlier.
func Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// Normalize rounds a currency amount half-up to two decimal places.
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
