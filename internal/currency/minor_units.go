// internal/currency/minor_units.go
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Stripe amounts are integers in the currency's minor unit (cents for USD).
// A handful of currencies have no minor unit at all, for those the amount is
// passed through unscaled. List matches Stripe's zero-decimal set.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true,
	"CLP": true,
	"DJF": true,
	"GNF": true,
	"JPY": true,
	"KMF": true,
	"KRW": true,
	"MGA": true,
	"PYG": true,
	"RWF": true,
	"UGX": true,
	"VND": true,
	"VUV": true,
	"XAF": true,
	"XOF": true,
	"XPF": true,
}

// FractionDigits returns how many minor-unit digits a currency carries.
func FractionDigits(currencyCode string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currencyCode)] {
		return 0
	}
	return 2
}

// MinorUnits converts a decimal storefront amount into the integer Stripe
// expects. The math stays in decimal all the way (no float drift), the final
// product is rounded half away from zero: 10.005 USD -> 1001.
// There is no error path here, any amount converts.
func MinorUnits(number decimal.Decimal, currencyCode string) int64 {
	return number.Shift(FractionDigits(currencyCode)).Round(0).IntPart()
}
