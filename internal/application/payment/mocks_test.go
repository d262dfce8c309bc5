package payment

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) PrepareCheckout(ctx context.Context, userID int64, orderNo string, now time.Time) (payment.CheckoutTarget, error) {
	args := m.Called(ctx, userID, orderNo, now)
	return args.Get(0).(payment.CheckoutTarget), args.Error(1)
}

func (m *MockRepository) BindExternalOrder(ctx context.Context, paymentID int64, externalOrderID, approveURL string) error {
	return m.Called(ctx, paymentID, externalOrderID, approveURL).Error(0)
}

func (m *MockRepository) FindAttempt(ctx context.Context, paymentID int64) (*payment.Attempt, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *MockRepository) FindAttemptByExternalOrderID(ctx context.Context, externalOrderID string) (*payment.Attempt, error) {
	args := m.Called(ctx, externalOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *MockRepository) FindSuccessfulAttempt(ctx context.Context, orderID int64) (*payment.Attempt, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *MockRepository) ApplyCaptureResult(ctx context.Context, paymentID int64, outcome payment.CaptureOutcome, paymentTTL time.Duration, now time.Time) (payment.CaptureApplied, error) {
	args := m.Called(ctx, paymentID, outcome, paymentTTL, now)
	return args.Get(0).(payment.CaptureApplied), args.Error(1)
}

func (m *MockRepository) CloseAttempt(ctx context.Context, paymentID int64, now time.Time) (bool, error) {
	args := m.Called(ctx, paymentID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkPolled(ctx context.Context, paymentID int64, captureID string, now time.Time) error {
	return m.Called(ctx, paymentID, captureID, now).Error(0)
}

func (m *MockRepository) RecordNotification(ctx context.Context, paymentID int64, n payment.Notification) error {
	return m.Called(ctx, paymentID, n).Error(0)
}

func (m *MockRepository) ListSyncCandidates(ctx context.Context, limit int) ([]int64, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRepository) FindOpenRefund(ctx context.Context, orderID int64) (*payment.Refund, error) {
	return m.refund(m.Called(ctx, orderID))
}

func (m *MockRepository) CountRefunds(ctx context.Context, orderID int64) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) FindRefund(ctx context.Context, refundID int64) (*payment.Refund, error) {
	return m.refund(m.Called(ctx, refundID))
}

func (m *MockRepository) ListRefundsByPayment(ctx context.Context, paymentID int64) ([]*payment.Refund, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Refund), args.Error(1)
}

func (m *MockRepository) FindRefundByExternalID(ctx context.Context, paymentID int64, externalRefundID string) (*payment.Refund, error) {
	return m.refund(m.Called(ctx, paymentID, externalRefundID))
}

func (m *MockRepository) FindPendingRefundWithoutExternalID(ctx context.Context, paymentID int64) (*payment.Refund, error) {
	return m.refund(m.Called(ctx, paymentID))
}

func (m *MockRepository) ExistsRefundDedupeKey(ctx context.Context, paymentID int64, clientRefundNo string) (bool, error) {
	args := m.Called(ctx, paymentID, clientRefundNo)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) InsertRefund(ctx context.Context, r *payment.Refund) (*payment.Refund, bool, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*payment.Refund), args.Bool(1), args.Error(2)
}

func (m *MockRepository) BindRefundExternalID(ctx context.Context, refundID int64, externalRefundID string) error {
	return m.Called(ctx, refundID, externalRefundID).Error(0)
}

func (m *MockRepository) ConfirmRefundAndRestock(ctx context.Context, c payment.ConfirmedRefund, now time.Time) (*payment.Refund, error) {
	return m.refund(m.Called(ctx, c, now))
}

func (m *MockRepository) ApplyRefundResult(ctx context.Context, refundID int64, status payment.RefundStatus, source order.EventSource, now time.Time) (payment.RefundApplied, error) {
	args := m.Called(ctx, refundID, status, source, now)
	return args.Get(0).(payment.RefundApplied), args.Error(1)
}

func (m *MockRepository) ListNonFinalRefunds(ctx context.Context, limit int) ([]*payment.Refund, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Refund), args.Error(1)
}

func (m *MockRepository) refund(args mock.Arguments) (*payment.Refund, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Refund), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (payment.GatewayOrder, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.GatewayOrder), args.Error(1)
}

func (m *MockGateway) GetOrder(ctx context.Context, externalOrderID string) (payment.GatewayOrder, error) {
	args := m.Called(ctx, externalOrderID)
	return args.Get(0).(payment.GatewayOrder), args.Error(1)
}

func (m *MockGateway) CaptureOrder(ctx context.Context, externalOrderID, idempotencyKey string) (payment.GatewayOrder, error) {
	args := m.Called(ctx, externalOrderID, idempotencyKey)
	return args.Get(0).(payment.GatewayOrder), args.Error(1)
}

func (m *MockGateway) RefundCapture(ctx context.Context, req payment.RefundCaptureRequest) (payment.GatewayRefund, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.GatewayRefund), args.Error(1)
}

func (m *MockGateway) GetRefund(ctx context.Context, externalRefundID string) (payment.GatewayRefund, error) {
	args := m.Called(ctx, externalRefundID)
	return args.Get(0).(payment.GatewayRefund), args.Error(1)
}

func (m *MockGateway) VerifyWebhookAndReplayProtection(ctx context.Context, headers map[string]string, body []byte) (payment.WebhookEvent, bool, error) {
	args := m.Called(ctx, headers, body)
	return args.Get(0).(payment.WebhookEvent), args.Bool(1), args.Error(2)
}

func (m *MockGateway) TryExtractOrderID(event payment.WebhookEvent) (string, bool) {
	args := m.Called(event)
	return args.String(0), args.Bool(1)
}

func (m *MockGateway) ReleaseWebhookEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type MockShipments struct {
	mock.Mock
}

func (m *MockShipments) EnsurePlaceholder(ctx context.Context, orderID int64, orderNo string) error {
	return m.Called(ctx, orderID, orderNo).Error(0)
}

func (m *MockShipments) ListPaidWithoutShipment(ctx context.Context, limit int) ([]order.PaidOrderRef, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.PaidOrderRef), args.Error(1)
}

type isoCurrencies struct{}

func (isoCurrencies) Get(_ context.Context, code string) (valueobject.CurrencyConfig, error) {
	return valueobject.DefaultCurrencyConfig(code), nil
}
