package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/intlshop/backend/internal/domain/shared"
)

// RoundingMode names how a currency rounds amounts that fall between minor units
type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "HALF_UP"
	RoundHalfEven RoundingMode = "HALF_EVEN"
	RoundHalfDown RoundingMode = "HALF_DOWN"
	RoundUp       RoundingMode = "UP"
	RoundDown     RoundingMode = "DOWN"
	RoundCeiling  RoundingMode = "CEILING"
	RoundFloor    RoundingMode = "FLOOR"
)

// MaxMinorUnitDigits bounds the scale so 10^digits stays well inside int64
const MaxMinorUnitDigits = 9

// ParseRoundingMode accepts the stored names; BANKERS is an alias of HALF_EVEN
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch m := RoundingMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "", RoundHalfUp:
		return RoundHalfUp, nil
	case "BANKERS":
		return RoundHalfEven, nil
	case RoundHalfEven, RoundHalfDown, RoundUp, RoundDown, RoundCeiling, RoundFloor:
		return m, nil
	default:
		return "", shared.NewIllegalParamError("unknown rounding mode %q", s)
	}
}

// CurrencyConfig carries the minor-unit scale and rounding rule of one currency.
// It is the only place where decimal amounts are rounded into minor units.
type CurrencyConfig struct {
	code   string
	digits int32
	mode   RoundingMode
}

// NewCurrencyConfig validates and builds a CurrencyConfig
func NewCurrencyConfig(code string, minorUnitDigits int, mode RoundingMode) (CurrencyConfig, error) {
	c, err := NormalizeCurrencyCode(code)
	if err != nil {
		return CurrencyConfig{}, err
	}
	if minorUnitDigits < 0 || minorUnitDigits > MaxMinorUnitDigits {
		return CurrencyConfig{}, shared.NewIllegalParamError("minor unit digits out of range for %s: %d", c, minorUnitDigits)
	}
	if _, err := ParseRoundingMode(string(mode)); err != nil {
		return CurrencyConfig{}, err
	}
	if mode == "" {
		mode = RoundHalfUp
	}
	return CurrencyConfig{code: c, digits: int32(minorUnitDigits), mode: mode}, nil
}

// DefaultCurrencyConfig uses the ISO 4217 scale (2 when unknown) and HALF_UP
func DefaultCurrencyConfig(code string) CurrencyConfig {
	c := strings.ToUpper(strings.TrimSpace(code))
	digits := 2
	if unit, err := currency.ParseISO(c); err == nil {
		scale, _ := currency.Standard.Rounding(unit)
		digits = scale
	}
	return CurrencyConfig{code: c, digits: int32(digits), mode: RoundHalfUp}
}

func (c CurrencyConfig) Code() string               { return c.code }
func (c CurrencyConfig) MinorUnitDigits() int       { return int(c.digits) }
func (c CurrencyConfig) RoundingMode() RoundingMode { return c.mode }

// Round rounds a major-unit decimal to the currency's scale
func (c CurrencyConfig) Round(major decimal.Decimal) decimal.Decimal {
	p := c.digits
	switch c.mode {
	case RoundHalfEven:
		return major.RoundBank(p)
	case RoundHalfDown:
		t := major.Truncate(p)
		half := decimal.New(5, -(p + 1))
		if major.Sub(t).Abs().GreaterThan(half) {
			return major.RoundUp(p)
		}
		return t
	case RoundUp:
		return major.RoundUp(p)
	case RoundDown:
		return major.RoundDown(p)
	case RoundCeiling:
		return major.RoundCeil(p)
	case RoundFloor:
		return major.RoundFloor(p)
	default:
		return major.Round(p)
	}
}

// ToMajor converts minor units to a major-unit decimal, e.g. 1250 USD -> 12.50
func (c CurrencyConfig) ToMajor(amountMinor int64) decimal.Decimal {
	return decimal.New(amountMinor, -c.digits)
}

// ToMinorRounded rounds a non-negative major-unit decimal into minor units
func (c CurrencyConfig) ToMinorRounded(major decimal.Decimal) (int64, error) {
	if major.IsNegative() {
		return 0, shared.NewIllegalParamError("negative amount %s for %s", major.String(), c.code)
	}
	minor := c.Round(major).Shift(c.digits)
	if !minor.BigInt().IsInt64() {
		return 0, ErrAmountOverflow
	}
	return minor.IntPart(), nil
}

// RoundMinor rounds a fractional minor-unit quantity (e.g. a percentage of an
// amount) with the currency's rounding mode
func (c CurrencyConfig) RoundMinor(minor decimal.Decimal) (int64, error) {
	return c.ToMinorRounded(minor.Shift(-c.digits))
}

// FormatMajor renders minor units as a fixed-scale major string, e.g. "12.50"
func (c CurrencyConfig) FormatMajor(amountMinor int64) string {
	return c.ToMajor(amountMinor).StringFixed(c.digits)
}

// ParseMajor parses a major-unit string such as "12.50" into Money
func (c CurrencyConfig) ParseMajor(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, shared.NewIllegalParamError("invalid amount %q", s)
	}
	minor, err := c.ToMinorRounded(d)
	if err != nil {
		return Money{}, err
	}
	return Money{currency: c.code, amountMinor: minor}, nil
}

// Money wraps a minor amount in this currency
func (c CurrencyConfig) Money(amountMinor int64) Money {
	return Money{currency: c.code, amountMinor: amountMinor}
}
