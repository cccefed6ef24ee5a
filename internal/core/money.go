// Package core holds the finance domain: money arithmetic, the category set,
// and the record types shared by the generator, importer and aggregator.
//
// All monetary values are integer cents. Parsing performs half-up rounding on
// the third decimal place so that no floating-point value ever enters a
// computation. Percentages are carried as basis points (hundredths of a
// percent) and only formatted to two decimals for display.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is a signed amount in cents.
type Money struct {
	Cents int64
}

// CentsOf builds a Money from a raw cent count.
func CentsOf(c int64) Money { return Money{Cents: c} }

// Add returns m + other.
func (m Money) Add(other Money) Money { return Money{Cents: m.Cents + other.Cents} }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return Money{Cents: m.Cents - other.Cents} }

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Neg returns -m.
func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Cents == 0 }

// String formats the amount with two decimals and a dot separator, e.g.
// "-45.50". Used for display and wire encoding; never parsed back for math.
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseMoney converts a decimal string to signed cents with half-up rounding
// on the third decimal place. Both dot (12.34) and comma (12,34) separators
// are accepted, as is an optional leading sign.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("-45,5")  -> -4550
//	ParseMoney("12.346") -> 1235 (rounds up)
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" || s == "." {
		return Money{}, ErrInvalidAmount
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return Money{}, ErrInvalidAmount
	}

	// First two fractional digits, half-up on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if negative {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}

// BasisPoints expresses part as a fraction of whole in hundredths of a
// percent, half-up. A zero or negative whole yields 0 so that an unset budget
// limit never causes a division error.
func BasisPoints(part, whole Money) int64 {
	if whole.Cents <= 0 {
		return 0
	}
	p := part.Abs().Cents
	w := whole.Cents
	return (p*10000 + w/2) / w
}

// FormatBasisPoints renders basis points as a percentage with two decimals,
// e.g. 11500 -> "115.00".
func FormatBasisPoints(bp int64) string {
	sign := ""
	if bp < 0 {
		sign = "-"
		bp = -bp
	}
	return fmt.Sprintf("%s%d.%02d", sign, bp/100, bp%100)
}
