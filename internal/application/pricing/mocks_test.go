package pricing

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

type MockCurrencyRepository struct {
	mock.Mock
}

func (m *MockCurrencyRepository) FindByCode(ctx context.Context, code string) (*pricing.CurrencyRecord, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.CurrencyRecord), args.Error(1)
}

func (m *MockCurrencyRepository) ListEnabledCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockCurrencyCache struct {
	mock.Mock
}

func (m *MockCurrencyCache) Get(ctx context.Context, code string) (*pricing.CurrencyRecord, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.CurrencyRecord), args.Error(1)
}

func (m *MockCurrencyCache) Set(ctx context.Context, rec pricing.CurrencyRecord, ttl time.Duration) error {
	return m.Called(ctx, rec, ttl).Error(0)
}

func (m *MockCurrencyCache) Delete(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

type MockFxRateRepository struct {
	mock.Mock
}

func (m *MockFxRateRepository) FindLatest(ctx context.Context, base, quote string) (pricing.FxRate, error) {
	args := m.Called(ctx, base, quote)
	return args.Get(0).(pricing.FxRate), args.Error(1)
}

func (m *MockFxRateRepository) FindLatestByQuotes(ctx context.Context, base string, quotes []string) (map[string]pricing.FxRate, error) {
	args := m.Called(ctx, base, quotes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]pricing.FxRate), args.Error(1)
}

func (m *MockFxRateRepository) UpsertLatest(ctx context.Context, rates []pricing.FxRate) error {
	return m.Called(ctx, rates).Error(0)
}

type MockFxFeed struct {
	mock.Mock
}

func (m *MockFxFeed) FetchLatest(ctx context.Context, base string, quotes []string) ([]pricing.FxRate, error) {
	args := m.Called(ctx, base, quotes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pricing.FxRate), args.Error(1)
}

type MockDiscountAdminRepository struct {
	mock.Mock
}

func (m *MockDiscountAdminRepository) FindCodeByText(ctx context.Context, code string) (*pricing.Code, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Code), args.Error(1)
}

func (m *MockDiscountAdminRepository) FindPolicyByID(ctx context.Context, id int64) (*pricing.Policy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Policy), args.Error(1)
}

func (m *MockDiscountAdminRepository) ListCodeProductIDs(ctx context.Context, codeID int64) ([]int64, error) {
	args := m.Called(ctx, codeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockDiscountAdminRepository) SavePolicy(ctx context.Context, p *pricing.Policy) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockDiscountAdminRepository) ListAmountPolicies(ctx context.Context, afterID int64, limit int) ([]*pricing.Policy, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pricing.Policy), args.Error(1)
}

func (m *MockDiscountAdminRepository) CreateCode(ctx context.Context, c *pricing.Code, productIDs []int64) error {
	return m.Called(ctx, c, productIDs).Error(0)
}

func (m *MockDiscountAdminRepository) ListPolicies(ctx context.Context, f pricing.PolicyFilter) ([]*pricing.Policy, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*pricing.Policy), args.Get(1).(int64), args.Error(2)
}

func (m *MockDiscountAdminRepository) DeletePolicy(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDiscountAdminRepository) FindCodeByID(ctx context.Context, id int64) (*pricing.Code, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Code), args.Error(1)
}

func (m *MockDiscountAdminRepository) ListCodes(ctx context.Context, f pricing.CodeFilter) ([]*pricing.Code, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*pricing.Code), args.Get(1).(int64), args.Error(2)
}

func (m *MockDiscountAdminRepository) UpdateCode(ctx context.Context, c *pricing.Code) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockDiscountAdminRepository) ReplaceCodeProducts(ctx context.Context, codeID int64, mode pricing.ScopeMode, productIDs []int64) error {
	return m.Called(ctx, codeID, mode, productIDs).Error(0)
}

func (m *MockDiscountAdminRepository) DeleteCode(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// staticDirectory serves ISO defaults and a fixed enabled list
type staticDirectory struct {
	enabled []string
}

func (d staticDirectory) Get(_ context.Context, code string) (valueobject.CurrencyConfig, error) {
	return valueobject.DefaultCurrencyConfig(code), nil
}

func (d staticDirectory) EnabledCurrencies(context.Context) ([]string, error) {
	return d.enabled, nil
}
