package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Optional money values (contribution, banker fee)
// =============================================================================

// NewAmount wraps a decimal as a present amount.
func NewAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// MustAmount parses s or panics. Use in tests and fixtures only.
func MustAmount(s string) decimal.NullDecimal {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAmount parses a decimal string. Empty input is an absent amount.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewAmount(d), nil
}

// FormatAmount is the inverse of ParseAmount. Absent amounts render as "".
func FormatAmount(a decimal.NullDecimal) string {
	if !a.Valid {
		return ""
	}
	return a.Decimal.String()
}

// AmountPtr returns nil for absent amounts, for nullable columns.
func AmountPtr(a decimal.NullDecimal) *string {
	if !a.Valid {
		return nil
	}
	s := a.Decimal.String()
	return &s
}
