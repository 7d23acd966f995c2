// Package money converts booking amounts into the integer minor units the
// payment processor bills in.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies the processor bills without a fractional part.
// See https://stripe.com/docs/currencies#zero-decimal
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Lowest chargeable amount per currency, in major units.
// See https://stripe.com/docs/currencies#minimum-and-maximum-charge-amounts
var minimumAmounts = map[string]decimal.Decimal{
	"USD": decimal.RequireFromString("0.50"),
	"AUD": decimal.RequireFromString("0.50"),
	"BRL": decimal.RequireFromString("0.50"),
	"CAD": decimal.RequireFromString("0.50"),
	"CHF": decimal.RequireFromString("0.50"),
	"EUR": decimal.RequireFromString("0.50"),
	"NZD": decimal.RequireFromString("0.50"),
	"SGD": decimal.RequireFromString("0.50"),
	"DKK": decimal.RequireFromString("2.50"),
	"GBP": decimal.RequireFromString("0.30"),
	"HKD": decimal.RequireFromString("4.00"),
	"JPY": decimal.RequireFromString("50.00"),
	"MXN": decimal.RequireFromString("10.00"),
	"NOK": decimal.RequireFromString("3.00"),
	"SEK": decimal.RequireFromString("3.00"),
}

// DefaultMinimum applies to every currency missing from the table.
var DefaultMinimum = decimal.RequireFromString("0.50")

var hundred = decimal.NewFromInt(100)

// IsZeroDecimal reports whether the currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]
	return ok
}

// Places returns the number of decimal places the processor keeps for currency.
func Places(currency string) int32 {
	if IsZeroDecimal(currency) {
		return 0
	}
	return 2
}

// Round rounds amount to the precision the processor bills currency in.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(Places(currency))
}

// ToMinorUnits returns amount as the processor's integer representation.
//
// Zero-decimal currencies are rounded to a whole unit and never go negative.
// Everything else is rounded to cents and scaled by 100.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return amount.Round(0).Abs().IntPart()
	}
	return amount.Round(2).Mul(hundred).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Places(currency))
}

// MinimumChargeable returns the smallest amount the processor accepts for currency.
func MinimumChargeable(currency string) decimal.Decimal {
	if m, ok := minimumAmounts[strings.ToUpper(currency)]; ok {
		return m
	}
	return DefaultMinimum
}

// MeetsMinimum compares amount and the currency floor in minor units.
func MeetsMinimum(amount decimal.Decimal, currency string) bool {
	return ToMinorUnits(amount, currency) >= ToMinorUnits(MinimumChargeable(currency), currency)
}

// FormatMinor renders a minor-unit amount for log lines, e.g. "12.34 EUR".
func FormatMinor(minor int64, currency string) string {
	return fmt.Sprintf("%s %s", FromMinorUnits(minor, currency).StringFixed(Places(currency)), strings.ToUpper(currency))
}
