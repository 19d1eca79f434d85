// Package money converts between token base units and decimal strings.
package money

import (
	"errors"
	"math/big"
	"strings"
)

var (
	ErrEmptyAmount    = errors.New("amount is required")
	ErrInvalidAmount  = errors.New("invalid amount format")
	ErrTooPrecise     = errors.New("amount has more decimals than the token")
)

// ParseUnits converts a human-readable amount to base units.
// "1.5" with 18 decimals is 1500000000000000000. Negative amounts, exponents
// and fractions finer than the token's precision are rejected.
func ParseUnits(amountStr string, decimals int) (*big.Int, error) {
	amountStr = strings.TrimSpace(amountStr)
	if amountStr == "" {
		return nil, ErrEmptyAmount
	}

	intPart, decPart, _ := strings.Cut(amountStr, ".")
	if intPart == "" && decPart == "" {
		return nil, ErrInvalidAmount
	}
	if !isDigits(intPart) || !isDigits(decPart) {
		return nil, ErrInvalidAmount
	}

	decPart = strings.TrimRight(decPart, "0")
	if len(decPart) > decimals {
		return nil, ErrTooPrecise
	}
	decPart += strings.Repeat("0", decimals-len(decPart))

	combined := strings.TrimLeft(intPart+decPart, "0")
	if combined == "" {
		return new(big.Int), nil
	}

	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return result, nil
}

// FormatUnits converts base units to a decimal string without trailing zeros.
// 150000000 with 8 decimals is "1.5".
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}

	sign := ""
	str := amount.String()
	if amount.Sign() < 0 {
		sign = "-"
		str = str[1:]
	}
	if decimals <= 0 {
		return sign + str
	}

	if len(str) <= decimals {
		str = strings.Repeat("0", decimals-len(str)+1) + str
	}

	pos := len(str) - decimals
	frac := strings.TrimRight(str[pos:], "0")
	if frac == "" {
		return sign + str[:pos]
	}
	return sign + str[:pos] + "." + frac
}

// FormatUnitsFixed is FormatUnits rounded down to at most places fractional digits,
// the way balances are displayed
func FormatUnitsFixed(amount *big.Int, decimals, places int) string {
	if amount == nil || places >= decimals {
		return FormatUnits(amount, decimals)
	}
	if places < 0 {
		places = 0
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-places)), nil)
	truncated := new(big.Int).Quo(amount, scale)
	return FormatUnits(truncated, places)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
