// Package money formats commerce-backend amounts for display.
//
// Amounts arrive as decimal major units (10.5 means ten and a half of the
// currency); the display scale comes from the ISO 4217 currency table.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var symbols = map[string]string{
	"USD": "$", "EUR": "€", "GBP": "£", "JPY": "¥", "DKK": "kr ", "SEK": "kr ", "NOK": "kr ",
	"CAD": "CA$", "AUD": "A$", "CHF": "CHF ", "INR": "₹", "CNY": "CN¥", "KRW": "₩", "BRL": "R$",
}

// Scale returns the number of decimals displayed for the currency code.
// Unknown codes fall back to 2.
func Scale(code string) int32 {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// Format renders amount in the given currency, e.g. "$10.50" or "12.00 XYZ".
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	num := amount.Abs().StringFixed(Scale(code))
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	if sym, ok := symbols[code]; ok {
		return sign + sym + num
	}
	if code == "" {
		return sign + num
	}
	return sign + num + " " + code
}

// Min returns the smallest amount, and false for an empty list.
func Min(amounts ...decimal.Decimal) (decimal.Decimal, bool) {
	if len(amounts) == 0 {
		return decimal.Zero, false
	}
	return decimal.Min(amounts[0], amounts[1:]...), true
}

// DiscountPercent returns the rounded percentage by which sale is below original.
func DiscountPercent(original, sale decimal.Decimal) int64 {
	if !original.IsPositive() || sale.GreaterThanOrEqual(original) {
		return 0
	}
	return original.Sub(sale).Div(original).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MinorUnits converts a major-unit amount to the integer smallest unit used
// by payment processors (10.5 USD -> 1050).
func MinorUnits(amount decimal.Decimal, code string) int64 {
	return amount.Shift(Scale(code)).Round(0).IntPart()
}
