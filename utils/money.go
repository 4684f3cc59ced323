package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit in practice.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"ISK": true,
	"XAF": true,
	"XOF": true,
	"DZD": true,
}

var threeDecimalCurrencies = map[string]bool{
	"BHD": true,
	"KWD": true,
	"OMR": true,
	"TND": true,
	"JOD": true,
}

// MinorUnitExponent returns the number of decimal places of the currency's
// smallest unit. Unknown currencies use two.
func MinorUnitExponent(currency string) int32 {
	c := strings.ToUpper(strings.TrimSpace(currency))
	switch {
	case zeroDecimalCurrencies[c]:
		return 0
	case threeDecimalCurrencies[c]:
		return 3
	default:
		return 2
	}
}

// RoundMoney rounds half away from zero to the currency's smallest unit.
func RoundMoney(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnitExponent(currency))
}

// FormatAmount renders an amount with exactly the currency's decimal places.
func FormatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(MinorUnitExponent(currency))
}

// PercentOf returns value * percent / 100 without rounding.
func PercentOf(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent).Div(decimal.NewFromInt(100))
}
