package domain

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Account identifies a participant (seller, buyer, operator) by address.
type Account string

// NewAccount normalizes an address so that hex addresses compare case-insensitively.
func NewAccount(raw string) Account {
	return Account(strings.ToLower(strings.TrimSpace(raw)))
}

func (a Account) String() string {
	return string(a)
}

func (a Account) IsZero() bool {
	return a == ""
}

// Amount is a quantity of the native payment unit, e.g. "0.1".
type Amount = decimal.Decimal

// Amounts are fixed-point with at most AmountScale fractional digits and
// maxAmountIntDigits integer digits, the range a DECIMAL(65,18) column holds.
const (
	AmountScale        = 18
	maxAmountIntDigits = 65 - AmountScale
)

var (
	ErrMalformedAmount = errors.New("malformed amount")

	amountPattern = regexp.MustCompile(`^[+-]?([0-9]+)(?:\.([0-9]+))?$`)
)

// ParseAmount parses a plain decimal string such as "0.1" into an Amount.
// Exponent notation is rejected, as is anything outside the storable range.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	m := amountPattern.FindStringSubmatch(raw)
	if m == nil {
		return Amount{}, ErrMalformedAmount
	}
	if len(strings.TrimLeft(m[1], "0")) > maxAmountIntDigits || len(m[2]) > AmountScale {
		return Amount{}, ErrMalformedAmount
	}
	return decimal.NewFromString(raw)
}

// MustAmount is ParseAmount for constants; it panics on malformed input.
func MustAmount(raw string) Amount {
	return decimal.RequireFromString(raw)
}
