package valueobject

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intlshop/backend/internal/domain/shared"
)

func TestNewMoney(t *testing.T) {
	t.Run("normalizes currency code", func(t *testing.T) {
		m, err := NewMoney(" usd ", 1250)
		require.NoError(t, err)
		assert.Equal(t, "USD", m.Currency())
		assert.Equal(t, int64(1250), m.AmountMinor())
	})

	t.Run("rejects malformed code", func(t *testing.T) {
		_, err := NewMoney("US", 1)
		assert.ErrorIs(t, err, shared.ErrIllegalParam)
		_, err = NewMoney("U5D", 1)
		assert.ErrorIs(t, err, shared.ErrIllegalParam)
	})
}

func TestMoneyArithmetic(t *testing.T) {
	usd := MustMoney("USD", 1000)
	eur := MustMoney("EUR", 1000)

	sum, err := usd.Add(MustMoney("USD", 250))
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.AmountMinor())

	diff, err := usd.Subtract(MustMoney("USD", 1500))
	require.NoError(t, err)
	assert.Equal(t, int64(-500), diff.AmountMinor())
	assert.True(t, diff.IsNegative())

	prod, err := usd.Multiply(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), prod.AmountMinor())

	cmp, err := usd.Compare(MustMoney("USD", 999))
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	_, err = usd.Add(eur)
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)
	_, err = usd.Subtract(eur)
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)
	_, err = usd.Compare(eur)
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)
}

func TestMoneyOverflow(t *testing.T) {
	big := MustMoney("USD", math.MaxInt64)
	_, err := big.Add(MustMoney("USD", 1))
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = big.Multiply(2)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = MustMoney("USD", 0).Subtract(MustMoney("USD", math.MinInt64))
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestMoneyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	amounts := gen.Int64Range(-1_000_000_000_000, 1_000_000_000_000)

	properties.Property("add is commutative", prop.ForAll(
		func(a, b int64) bool {
			x, _ := MustMoney("EUR", a).Add(MustMoney("EUR", b))
			y, _ := MustMoney("EUR", b).Add(MustMoney("EUR", a))
			return x.Equals(y)
		},
		amounts, amounts,
	))

	properties.Property("subtract undoes add", prop.ForAll(
		func(a, b int64) bool {
			s, err := MustMoney("JPY", a).Add(MustMoney("JPY", b))
			if err != nil {
				return false
			}
			back, err := s.Subtract(MustMoney("JPY", b))
			return err == nil && back.AmountMinor() == a
		},
		amounts, amounts,
	))

	properties.Property("compare agrees with subtract sign", prop.ForAll(
		func(a, b int64) bool {
			c, _ := MustMoney("GBP", a).Compare(MustMoney("GBP", b))
			d, _ := MustMoney("GBP", a).Subtract(MustMoney("GBP", b))
			switch {
			case d.IsZero():
				return c == 0
			case d.IsPositive():
				return c == 1
			default:
				return c == -1
			}
		},
		amounts, amounts,
	))

	properties.TestingRun(t)
}
