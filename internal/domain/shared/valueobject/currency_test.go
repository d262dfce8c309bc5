package valueobject

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intlshop/backend/internal/domain/shared"
)

func TestDefaultCurrencyConfig(t *testing.T) {
	tests := []struct {
		code   string
		digits int
	}{
		{"USD", 2},
		{"JPY", 0},
		{"KWD", 3},
		{"ZZZ", 2},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			cfg := DefaultCurrencyConfig(tt.code)
			assert.Equal(t, tt.digits, cfg.MinorUnitDigits())
			assert.Equal(t, RoundHalfUp, cfg.RoundingMode())
		})
	}
}

func TestNewCurrencyConfig(t *testing.T) {
	_, err := NewCurrencyConfig("USD", 10, RoundHalfUp)
	assert.ErrorIs(t, err, shared.ErrIllegalParam)

	_, err = NewCurrencyConfig("USD", 2, "SIDEWAYS")
	assert.ErrorIs(t, err, shared.ErrIllegalParam)

	cfg, err := NewCurrencyConfig("usd", 2, "")
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Code())
	assert.Equal(t, RoundHalfUp, cfg.RoundingMode())
}

func TestParseRoundingMode(t *testing.T) {
	m, err := ParseRoundingMode("bankers")
	require.NoError(t, err)
	assert.Equal(t, RoundHalfEven, m)

	m, err = ParseRoundingMode("")
	require.NoError(t, err)
	assert.Equal(t, RoundHalfUp, m)
}

func TestCurrencyConfigRounding(t *testing.T) {
	tests := []struct {
		mode  RoundingMode
		input string
		want  int64
	}{
		{RoundHalfUp, "1.005", 101},
		{RoundHalfUp, "1.004", 100},
		{RoundHalfEven, "1.005", 100},
		{RoundHalfEven, "1.015", 102},
		{RoundHalfDown, "1.005", 100},
		{RoundHalfDown, "1.0051", 101},
		{RoundUp, "1.001", 101},
		{RoundDown, "1.009", 100},
		{RoundCeiling, "1.001", 101},
		{RoundFloor, "1.009", 100},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"_"+tt.input, func(t *testing.T) {
			cfg, err := NewCurrencyConfig("USD", 2, tt.mode)
			require.NoError(t, err)
			got, err := cfg.ToMinorRounded(decimal.RequireFromString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrencyConfigConversions(t *testing.T) {
	usd := DefaultCurrencyConfig("USD")
	jpy := DefaultCurrencyConfig("JPY")

	assert.Equal(t, "12.50", usd.FormatMajor(1250))
	assert.Equal(t, "1250", jpy.FormatMajor(1250))

	m, err := usd.ParseMajor("19.999")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), m.AmountMinor())
	assert.Equal(t, "USD", m.Currency())

	_, err = usd.ParseMajor("abc")
	assert.ErrorIs(t, err, shared.ErrIllegalParam)

	_, err = usd.ToMinorRounded(decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, shared.ErrIllegalParam)

	_, err = usd.ToMinorRounded(decimal.RequireFromString("1e30"))
	assert.ErrorIs(t, err, ErrAmountOverflow)

	r, err := usd.RoundMinor(decimal.RequireFromString("150.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(151), r)
}

func TestCurrencyConfigRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("minor -> major -> minor is identity", prop.ForAll(
		func(minor int64, digits int) bool {
			cfg, err := NewCurrencyConfig("XTS", digits, RoundHalfEven)
			if err != nil {
				return false
			}
			back, err := cfg.ToMinorRounded(cfg.ToMajor(minor))
			return err == nil && back == minor
		},
		gen.Int64Range(0, 1_000_000_000_000),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
