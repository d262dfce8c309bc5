package valueobject

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/intlshop/backend/internal/domain/shared"
)

// ErrAmountOverflow is returned when minor-unit arithmetic leaves the int64 range
var ErrAmountOverflow = errors.New("money: amount overflows int64 minor units")

// Money is a fixed-point amount expressed in the currency's minor units.
// It is immutable - all operations return new Money instances.
type Money struct {
	currency    string
	amountMinor int64
}

// NewMoney creates Money from a minor-unit amount
func NewMoney(currency string, amountMinor int64) (Money, error) {
	code, err := NormalizeCurrencyCode(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{currency: code, amountMinor: amountMinor}, nil
}

// MustMoney is NewMoney for literals known to be valid
func MustMoney(currency string, amountMinor int64) Money {
	m, err := NewMoney(currency, amountMinor)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency
func Zero(currency string) Money {
	return Money{currency: strings.ToUpper(currency)}
}

// NormalizeCurrencyCode upper-cases and validates an ISO 4217 style code
func NormalizeCurrencyCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", shared.NewIllegalParamError("invalid currency code %q", code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", shared.NewIllegalParamError("invalid currency code %q", code)
		}
	}
	return c, nil
}

// Currency returns the currency code
func (m Money) Currency() string {
	return m.currency
}

// AmountMinor returns the amount in minor units
func (m Money) AmountMinor() int64 {
	return m.amountMinor
}

func (m Money) IsZero() bool     { return m.amountMinor == 0 }
func (m Money) IsPositive() bool { return m.amountMinor > 0 }
func (m Money) IsNegative() bool { return m.amountMinor < 0 }

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return &shared.DomainError{
			Code:    shared.CodeCurrencyMismatch,
			Message: fmt.Sprintf("currency mismatch: %s and %s", m.currency, other.currency),
		}
	}
	return nil
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	sum, err := addInt64(m.amountMinor, other.amountMinor)
	if err != nil {
		return Money{}, err
	}
	return Money{currency: m.currency, amountMinor: sum}, nil
}

// Subtract returns m - other
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.amountMinor == math.MinInt64 {
		return Money{}, ErrAmountOverflow
	}
	diff, err := addInt64(m.amountMinor, -other.amountMinor)
	if err != nil {
		return Money{}, err
	}
	return Money{currency: m.currency, amountMinor: diff}, nil
}

// Multiply scales the amount by an integer factor, e.g. unit price by quantity
func (m Money) Multiply(factor int64) (Money, error) {
	if m.amountMinor == 0 || factor == 0 {
		return Money{currency: m.currency}, nil
	}
	p := m.amountMinor * factor
	if p/factor != m.amountMinor || (m.amountMinor == -1 && factor == math.MinInt64) || (factor == -1 && m.amountMinor == math.MinInt64) {
		return Money{}, ErrAmountOverflow
	}
	return Money{currency: m.currency, amountMinor: p}, nil
}

// Compare returns -1, 0 or 1
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.amountMinor < other.amountMinor:
		return -1, nil
	case m.amountMinor > other.amountMinor:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equals reports whether both values carry the same currency and amount
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amountMinor == other.amountMinor
}

// String renders the raw minor amount, e.g. "USD 1250"
func (m Money) String() string {
	return fmt.Sprintf("%s %d", m.currency, m.amountMinor)
}

func addInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}
