// Package money converts between gateway amount representations and integer
// minor units.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrPrecisionLoss   = errors.New("amount_precision_loss")
)

// ISO 4217 minor-unit exponents that differ from 2.
var exponents = map[string]int32{
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0,
	"XAF": 0, "XOF": 0, "XPF": 0,
}

// NormalizeCurrency upper-cases and validates a three-letter code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if exp, ok := exponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts a decimal major-unit string such as "500.00" into
// minor units. Amounts with more precision than the currency allows are
// rejected rather than rounded.
func ToMinorUnits(amount string, currency string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	scaled := d.Shift(Exponent(currency))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrPrecisionLoss
	}
	if !scaled.IsInteger() || scaled.Cmp(decimal.NewFromInt(maxInt64)) > 0 || scaled.Cmp(decimal.NewFromInt(-maxInt64)) < 0 {
		return 0, ErrInvalidAmount
	}
	return scaled.IntPart(), nil
}

const maxInt64 = int64(^uint64(0) >> 1)

// FromMinorUnits renders minor units as a fixed-point major-unit string.
func FromMinorUnits(amount int64, currency string) string {
	exp := Exponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp)
}

// Format renders amount with its currency code, e.g. "INR 500.00".
func Format(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	return currency + " " + FromMinorUnits(amount, currency)
}
