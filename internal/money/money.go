// Package money converts between user-entered decimal amounts and the
// integer minor units amounts are stored in.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openlets/openlets/internal/model"
)

// ErrInvalidAmount is returned for text that is not a plain unsigned
// decimal number valid for the currency.
var ErrInvalidAmount = errors.New("invalid amount")

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// Parse converts "12.5" into minor units for a currency with places
// decimal places (1250 for places=2). Only digits and a single '.' are
// accepted; more fractional digits than places is an error.
func Parse(s string, places int32) (int64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: unknown number %q", ErrInvalidAmount, s)
	}
	for _, p := range parts {
		if !isDigits(p) {
			return 0, fmt.Errorf("%w: unknown number %q", ErrInvalidAmount, s)
		}
	}
	if len(parts) == 2 && int32(len(parts[1])) > places {
		return 0, fmt.Errorf("%w: too many decimal places (%d), currency allows %d", ErrInvalidAmount, len(parts[1]), places)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	minor := d.Shift(places)
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, s)
	}
	return minor.IntPart(), nil
}

// Format renders minor units with exactly places fractional digits.
// Format(1250, 2) == "12.50"
func Format(minor int64, places int32) string {
	return decimal.New(minor, -places).StringFixed(places)
}

// FormatCurrency renders minor units followed by the currency name.
// FormatCurrency(1250, USD) == "12.50 USD"
func FormatCurrency(minor int64, c model.Currency) string {
	return Format(minor, c.DecimalPlaces) + " " + c.Name
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
