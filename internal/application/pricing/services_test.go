package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }

func TestCurrencyConfigService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("reads row and caches it locally", func(t *testing.T) {
		repo := new(MockCurrencyRepository)
		repo.On("FindByCode", ctx, "USD").Return(&pricing.CurrencyRecord{
			Code: "USD", MinorUnit: 2, RoundingMode: "BANKERS", Enabled: true,
		}, nil).Once()
		svc := NewCurrencyConfigService(CurrencyServiceConfig{Repo: repo, Clock: shared.FixedClock{At: testNow}})

		cfg, err := svc.Get(ctx, "usd")
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.MinorUnitDigits())
		assert.Equal(t, valueobject.RoundHalfEven, cfg.RoundingMode())

		_, err = svc.Get(ctx, "USD")
		require.NoError(t, err)
		repo.AssertNumberOfCalls(t, "FindByCode", 1)
	})

	t.Run("unknown currency falls back to ISO defaults", func(t *testing.T) {
		repo := new(MockCurrencyRepository)
		repo.On("FindByCode", ctx, "JPY").Return(nil, shared.NewNotFoundError("currency JPY"))
		svc := NewCurrencyConfigService(CurrencyServiceConfig{Repo: repo})

		cfg, err := svc.Get(ctx, "JPY")
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.MinorUnitDigits())
		assert.Equal(t, valueobject.RoundHalfUp, cfg.RoundingMode())
	})

	t.Run("disabled currency uses defaults", func(t *testing.T) {
		repo := new(MockCurrencyRepository)
		repo.On("FindByCode", ctx, "EUR").Return(&pricing.CurrencyRecord{
			Code: "EUR", MinorUnit: 3, RoundingMode: "DOWN", Enabled: false,
		}, nil)
		svc := NewCurrencyConfigService(CurrencyServiceConfig{Repo: repo})

		cfg, err := svc.Get(ctx, "EUR")
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.MinorUnitDigits())
		assert.Equal(t, valueobject.RoundHalfUp, cfg.RoundingMode())
	})

	t.Run("shared cache hit skips the database", func(t *testing.T) {
		repo := new(MockCurrencyRepository)
		cache := new(MockCurrencyCache)
		cache.On("Get", ctx, "GBP").Return(&pricing.CurrencyRecord{
			Code: "GBP", MinorUnit: 2, RoundingMode: "HALF_DOWN", Enabled: true,
		}, nil)
		svc := NewCurrencyConfigService(CurrencyServiceConfig{Repo: repo, Cache: cache})

		cfg, err := svc.Get(ctx, "GBP")
		require.NoError(t, err)
		assert.Equal(t, valueobject.RoundHalfDown, cfg.RoundingMode())
		repo.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything)
	})

	t.Run("cache miss populates the shared cache", func(t *testing.T) {
		repo := new(MockCurrencyRepository)
		cache := new(MockCurrencyCache)
		rec := &pricing.CurrencyRecord{Code: "CAD", MinorUnit: 2, RoundingMode: "HALF_UP", Enabled: true}
		cache.On("Get", ctx, "CAD").Return(nil, nil)
		repo.On("FindByCode", ctx, "CAD").Return(rec, nil)
		cache.On("Set", ctx, *rec, DefaultCurrencyCacheTTL).Return(nil)
		svc := NewCurrencyConfigService(CurrencyServiceConfig{Repo: repo, Cache: cache})

		_, err := svc.Get(ctx, "CAD")
		require.NoError(t, err)
		cache.AssertExpectations(t)
	})

	t.Run("invalid code", func(t *testing.T) {
		svc := NewCurrencyConfigService(CurrencyServiceConfig{Repo: new(MockCurrencyRepository)})
		_, err := svc.Get(ctx, "EURO")
		assert.ErrorIs(t, err, shared.ErrIllegalParam)
	})

	t.Run("repository error propagates", func(t *testing.T) {
		repo := new(MockCurrencyRepository)
		repo.On("FindByCode", ctx, "USD").Return(nil, errors.New("db down"))
		svc := NewCurrencyConfigService(CurrencyServiceConfig{Repo: repo})
		_, err := svc.Get(ctx, "USD")
		assert.EqualError(t, err, "db down")
	})
}

func TestFxRateService_GetLatest(t *testing.T) {
	ctx := context.Background()
	repo := new(MockFxRateRepository)
	svc := NewFxRateService(FxServiceConfig{Repo: repo, BaseCurrency: "USD", Clock: shared.FixedClock{At: testNow}})

	rate, err := svc.GetLatest(ctx, "usd", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, testNow, rate.AsOf)
	repo.AssertNotCalled(t, "FindLatest", mock.Anything, mock.Anything, mock.Anything)

	repo.On("FindLatest", ctx, "USD", "EUR").Return(pricing.FxRate{}, shared.NewNotFoundError("fx USD/EUR"))
	_, err = svc.GetLatest(ctx, "USD", "eur")
	assert.True(t, shared.IsNotFound(err))
}

func TestFxRateService_SyncLatest(t *testing.T) {
	ctx := context.Background()
	repo := new(MockFxRateRepository)
	feed := new(MockFxFeed)
	currencies := new(MockCurrencyRepository)
	svc := NewFxRateService(FxServiceConfig{Repo: repo, Feed: feed, Currencies: currencies, BaseCurrency: "USD"})

	currencies.On("ListEnabledCodes", ctx).Return([]string{"USD", "EUR", "JPY"}, nil)
	feed.On("FetchLatest", ctx, "USD", []string{"EUR", "JPY"}).Return([]pricing.FxRate{
		{Base: "USD", Quote: "EUR", Rate: decimal.RequireFromString("0.9"), AsOf: testNow},
		{Base: "USD", Quote: "jpy", Rate: decimal.RequireFromString("150.5"), AsOf: testNow},
		{Base: "USD", Quote: "GBP", Rate: decimal.RequireFromString("0.8"), AsOf: testNow},
		{Base: "USD", Quote: "EUR", Rate: decimal.Zero, AsOf: testNow},
	}, nil)
	repo.On("UpsertLatest", ctx, mock.MatchedBy(func(rates []pricing.FxRate) bool {
		return len(rates) == 2 && rates[0].Quote == "EUR" && rates[1].Quote == "JPY"
	})).Return(nil)

	n, err := svc.SyncLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertExpectations(t)
}

func TestFxRateService_SyncLatest_OnlyBaseEnabled(t *testing.T) {
	ctx := context.Background()
	currencies := new(MockCurrencyRepository)
	feed := new(MockFxFeed)
	currencies.On("ListEnabledCodes", ctx).Return([]string{"USD"}, nil)
	svc := NewFxRateService(FxServiceConfig{Feed: feed, Currencies: currencies, BaseCurrency: "USD"})

	n, err := svc.SyncLatest(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	feed.AssertNotCalled(t, "FetchLatest", mock.Anything, mock.Anything, mock.Anything)
}

func TestFxRateService_SyncLatest_NoFeed(t *testing.T) {
	currencies := new(MockCurrencyRepository)
	svc := NewFxRateService(FxServiceConfig{Currencies: currencies, BaseCurrency: "USD"})

	_, err := svc.SyncLatest(context.Background())
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, shared.CodeGatewayFailure, de.Code)
	currencies.AssertNotCalled(t, "ListEnabledCodes", mock.Anything)
}

func newAdminService(repo *MockDiscountAdminRepository, rates *MockFxRateRepository, enabled ...string) *DiscountAdminService {
	return NewDiscountAdminService(DiscountAdminConfig{
		Repo:         repo,
		Rates:        rates,
		Currencies:   staticDirectory{enabled: enabled},
		BaseCurrency: "USD",
		Clock:        shared.FixedClock{At: testNow},
	})
}

func TestDiscountAdminService_UpsertPolicy_DerivesFxEntries(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDiscountAdminRepository)
	rates := new(MockFxRateRepository)
	svc := newAdminService(repo, rates, "USD", "EUR", "CAD")

	rates.On("FindLatestByQuotes", ctx, "USD", []string{"EUR", "CAD"}).Return(map[string]pricing.FxRate{
		"EUR": {Base: "USD", Quote: "EUR", Rate: decimal.RequireFromString("0.9"), AsOf: testNow.Add(-time.Hour), Provider: "test"},
	}, nil)
	repo.On("SavePolicy", ctx, mock.AnythingOfType("*pricing.Policy")).Return(nil)

	res, err := svc.UpsertPolicy(ctx, UpsertPolicyCommand{
		Name:         "Spring sale",
		ApplyScope:   pricing.ApplyScopeOrder,
		StrategyType: pricing.StrategyAmount,
		Amounts:      []pricing.PolicyAmount{{Currency: "usd", AmountOffMinor: int64Ptr(1000)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CAD"}, res.Skipped)

	eur, ok := res.Policy.AmountFor("EUR")
	require.True(t, ok)
	assert.Equal(t, int64(900), *eur.AmountOffMinor)
	assert.Equal(t, pricing.AmountSourceFxAuto, eur.Source)
	assert.Equal(t, "USD", eur.DerivedFrom)
	_, ok = res.Policy.AmountFor("CAD")
	assert.False(t, ok)
	repo.AssertExpectations(t)
}

func TestDiscountAdminService_UpsertPolicy_Invalid(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDiscountAdminRepository)
	svc := newAdminService(repo, new(MockFxRateRepository), "USD")

	pct := decimal.NewFromInt(120)
	_, err := svc.UpsertPolicy(ctx, UpsertPolicyCommand{
		Name:         "Too generous",
		ApplyScope:   pricing.ApplyScopeOrder,
		StrategyType: pricing.StrategyPercent,
		PercentOff:   &pct,
	})
	assert.ErrorIs(t, err, shared.ErrIllegalParam)
	repo.AssertNotCalled(t, "SavePolicy", mock.Anything, mock.Anything)
}

func TestDiscountAdminService_UpsertPolicy_UnknownPolicy(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDiscountAdminRepository)
	svc := newAdminService(repo, new(MockFxRateRepository), "USD")
	repo.On("FindPolicyByID", ctx, int64(77)).Return(nil, shared.NewNotFoundError("policy 77"))

	_, err := svc.UpsertPolicy(ctx, UpsertPolicyCommand{
		ID:           77,
		Name:         "Ghost",
		ApplyScope:   pricing.ApplyScopeOrder,
		StrategyType: pricing.StrategyAmount,
		Amounts:      []pricing.PolicyAmount{{Currency: "USD", AmountOffMinor: int64Ptr(500)}},
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestDiscountAdminService_CreateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("include scope needs products", func(t *testing.T) {
		repo := new(MockDiscountAdminRepository)
		svc := newAdminService(repo, new(MockFxRateRepository))
		_, err := svc.CreateCode(ctx, CreateCodeCommand{Code: "SPRING-10", PolicyID: 1, ScopeMode: pricing.ScopeInclude})
		assert.ErrorIs(t, err, shared.ErrIllegalParam)
	})

	t.Run("expiry in the past", func(t *testing.T) {
		repo := new(MockDiscountAdminRepository)
		svc := newAdminService(repo, new(MockFxRateRepository))
		_, err := svc.CreateCode(ctx, CreateCodeCommand{Code: "SPRING-10", PolicyID: 1, ExpiresAt: testNow.Add(-time.Minute)})
		assert.ErrorIs(t, err, shared.ErrIllegalParam)
	})

	t.Run("creates with deduplicated products", func(t *testing.T) {
		repo := new(MockDiscountAdminRepository)
		svc := newAdminService(repo, new(MockFxRateRepository))
		repo.On("FindPolicyByID", ctx, int64(1)).Return(&pricing.Policy{ID: 1}, nil)
		repo.On("CreateCode", ctx, mock.MatchedBy(func(c *pricing.Code) bool {
			return c.Code == "SPRING-10" && c.ScopeMode == pricing.ScopeExclude
		}), []int64{5, 9}).Return(nil)

		c, err := svc.CreateCode(ctx, CreateCodeCommand{
			Code:       " spring-10 ",
			PolicyID:   1,
			ScopeMode:  pricing.ScopeExclude,
			ProductIDs: []int64{5, 9, 5, 0},
			ExpiresAt:  testNow.Add(24 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, "SPRING-10", c.Code)
		repo.AssertExpectations(t)
	})
}

func TestDiscountAdminService_RecomputeFxAmountsAll(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDiscountAdminRepository)
	rates := new(MockFxRateRepository)
	svc := newAdminService(repo, rates, "USD", "EUR")

	withBase := &pricing.Policy{
		ID: 1, Name: "Flat", ApplyScope: pricing.ApplyScopeOrder, StrategyType: pricing.StrategyAmount,
		Amounts: []pricing.PolicyAmount{
			{Currency: "USD", AmountOffMinor: int64Ptr(1000), Source: pricing.AmountSourceManual},
			{Currency: "EUR", AmountOffMinor: int64Ptr(800), Source: pricing.AmountSourceFxAuto},
		},
	}
	pct := decimal.NewFromInt(10)
	withoutBase := &pricing.Policy{ID: 2, Name: "Pct", ApplyScope: pricing.ApplyScopeOrder, StrategyType: pricing.StrategyPercent, PercentOff: &pct}

	repo.On("ListAmountPolicies", ctx, int64(0), 2).Return([]*pricing.Policy{withBase, withoutBase}, nil)
	repo.On("ListAmountPolicies", ctx, int64(2), 2).Return([]*pricing.Policy{}, nil)
	rates.On("FindLatestByQuotes", ctx, "USD", []string{"EUR"}).Return(map[string]pricing.FxRate{
		"EUR": {Base: "USD", Quote: "EUR", Rate: decimal.RequireFromString("0.95"), AsOf: testNow},
	}, nil)
	repo.On("SavePolicy", ctx, withBase).Return(nil)

	report, err := svc.RecomputeFxAmountsAll(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, RecomputeReport{Policies: 2, Updated: 1}, report)

	eur, ok := withBase.AmountFor("EUR")
	require.True(t, ok)
	assert.Equal(t, int64(950), *eur.AmountOffMinor)
	repo.AssertExpectations(t)
}
