package internal

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// zeroDecimalCurrencies are the currencies whose minor unit is the major one.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true,
	"xpf": true,
}

// SecureEqual compares two secrets in constant time.
func SecureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsZeroDecimal reports whether amounts in the currency have no minor unit.
func IsZeroDecimal(currency string) bool {
	return zeroDecimalCurrencies[strings.ToLower(currency)]
}

// FormatAmount renders an amount in minor units as a decimal string in major
// units, e.g. 1250 eur is "12.50" and 500 jpy is "500".
func FormatAmount(amount int64, currency string) string {
	if IsZeroDecimal(currency) {
		return fmt.Sprintf("%d", amount)
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
