package order

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/pricing"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrderAndReserveStock(ctx context.Context, o *order.Order, log order.StatusLog, cartItemIDs []int64) error {
	return m.Called(ctx, o, log, cartItemIDs).Error(0)
}

func (m *MockOrderRepository) CancelAndReleaseStock(ctx context.Context, o *order.Order, log order.StatusLog) error {
	return m.Called(ctx, o, log).Error(0)
}

func (m *MockOrderRepository) CloseOrder(ctx context.Context, o *order.Order, log order.StatusLog) error {
	return m.Called(ctx, o, log).Error(0)
}

func (m *MockOrderRepository) SaveRefundRequest(ctx context.Context, o *order.Order, log order.StatusLog) error {
	return m.Called(ctx, o, log).Error(0)
}

func (m *MockOrderRepository) UpdateAddressSnapshot(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListStatusLogs(ctx context.Context, orderID int64) ([]order.StatusLog, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.StatusLog), args.Error(1)
}

func (m *MockOrderRepository) ListTimeoutCandidates(ctx context.Context, deadline time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, deadline, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockAdminReader struct {
	mock.Mock
}

func (m *MockAdminReader) ListOrders(ctx context.Context, f order.ListFilter) ([]*order.Order, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*order.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockAdminReader) ListInventoryLogs(ctx context.Context, orderID int64) ([]order.InventoryLog, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.InventoryLog), args.Error(1)
}

func (m *MockAdminReader) Stats(ctx context.Context) (order.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(order.Stats), args.Error(1)
}

type MockSkuReader struct {
	mock.Mock
}

func (m *MockSkuReader) ListSaleSnapshots(ctx context.Context, skuIDs []int64, currency string) (map[int64]order.SkuSnapshot, error) {
	args := m.Called(ctx, skuIDs, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]order.SkuSnapshot), args.Error(1)
}

type MockCartReader struct {
	mock.Mock
}

func (m *MockCartReader) ListSelected(ctx context.Context, userID int64) ([]order.CartLine, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.CartLine), args.Error(1)
}

type MockDiscountCalculator struct {
	mock.Mock
}

func (m *MockDiscountCalculator) Compute(ctx context.Context, req pricing.Request) (pricing.Outcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(pricing.Outcome), args.Error(1)
}

func (m *MockDiscountCalculator) BaseCurrency() string {
	return "USD"
}

type MockAddressClaim struct {
	mock.Mock
}

func (m *MockAddressClaim) TryMarkChanged(ctx context.Context, orderNo string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, orderNo, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockAddressClaim) Clear(ctx context.Context, orderNo string) error {
	return m.Called(ctx, orderNo).Error(0)
}

type MockAttachmentStorage struct {
	mock.Mock
}

func (m *MockAttachmentStorage) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, ttl)
	return args.String(0), args.Error(1)
}

type MockPaymentReader struct {
	mock.Mock
}

func (m *MockPaymentReader) FindSuccessfulAttempt(ctx context.Context, orderID int64) (*payment.Attempt, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *MockPaymentReader) FindOpenRefund(ctx context.Context, orderID int64) (*payment.Refund, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Refund), args.Error(1)
}

type MockRefundIssuer struct {
	mock.Mock
}

func (m *MockRefundIssuer) IssueRefund(ctx context.Context, o *order.Order, plan order.RefundPlan, note string) (*payment.Refund, error) {
	args := m.Called(ctx, o, plan, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Refund), args.Error(1)
}

type fixedIDs string

func (f fixedIDs) NewID(string) string { return string(f) }
