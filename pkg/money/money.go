// Package money formats minor-unit amounts for display.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

// Amount converts minor units into a decimal major-unit value.
func Amount(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// Format renders cents with the currency symbol, e.g. £89.99.
func Format(cents int64, currency enums.Currency) string {
	amount := Amount(cents)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	return sign + currency.Symbol() + amount.StringFixed(2)
}

// FormatGBP is Format for the storefront's only currency.
func FormatGBP(cents int64) string {
	return Format(cents, enums.CurrencyGBP)
}
