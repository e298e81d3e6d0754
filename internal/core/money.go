// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing signed decimal amounts from user
// input and rounding converted amounts to a currency's minor units.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MaxAmount bounds the magnitude of any single amount or budget.
const MaxAmount = 1e12

var maxAmount = decimal.NewFromFloat(MaxAmount)

// ParseAmount converts a decimal string to a float amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an optional
// leading sign, and surrounding spaces. Thousands separators are not accepted.
// Zero is rejected since a zero transaction carries no information.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("-12,5")  -> -12.5, nil
//	ParseAmount("1.2.3")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	if d.IsZero() {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// ParseDecimal is ParseAmount without the zero check, returning the exact value.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" || strings.Count(body, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil || d.Abs().GreaterThan(maxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Fraction returns the number of minor-unit digits of a currency, 2 when the
// currency is unknown.
func Fraction(currency string) int {
	cur := money.GetCurrency(NormalizeCurrency(currency))
	if cur == nil {
		return 2
	}
	return cur.Fraction
}

// Round rounds amount half away from zero to the minor units of currency.
// NaN and infinities are returned unchanged.
func Round(amount float64, currency string) float64 {
	if !finite(amount) {
		return amount
	}
	return decimal.NewFromFloat(amount).Round(int32(Fraction(currency))).InexactFloat64()
}

// Format renders amount with the currency's symbol and separators, e.g. "€12.34".
func Format(amount float64, currency string) string {
	code := NormalizeCurrency(currency)
	if !finite(amount) {
		return strconv.FormatFloat(amount, 'f', -1, 64) + " " + code
	}
	if money.GetCurrency(code) == nil {
		return decimal.NewFromFloat(amount).StringFixed(2) + " " + code
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(Fraction(code))).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// KnownCurrency reports whether code is an ISO 4217 currency.
func KnownCurrency(code string) bool {
	return money.GetCurrency(NormalizeCurrency(code)) != nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
