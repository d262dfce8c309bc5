package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	orderapp "github.com/intlshop/backend/internal/application/order"
	paymentapp "github.com/intlshop/backend/internal/application/payment"
	pricingapp "github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/interfaces/http/dto"
	"github.com/intlshop/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// asUser simulates JWTAuth for a shopper
func asUser(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, userID)
		c.Next()
	}
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(mw...)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the success envelope's data into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func decodeMeta(t *testing.T, w *httptest.ResponseRecorder) dto.Meta {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta, w.Body.String())
	return *resp.Meta
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error, w.Body.String())
	return *resp.Error
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Preview(ctx context.Context, userID int64, in orderapp.PriceInput) (*orderapp.Quote, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderapp.Quote), args.Error(1)
}

func (m *MockOrderService) Create(ctx context.Context, userID int64, in orderapp.CreateInput) (*orderapp.Detail, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderapp.Detail), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, userID int64, orderNo string) (*orderapp.Detail, error) {
	args := m.Called(ctx, userID, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderapp.Detail), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, userID int64, orderNo, reason string) (*order.Order, error) {
	args := m.Called(ctx, userID, orderNo, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ChangeAddress(ctx context.Context, userID int64, orderNo string, addr order.AddressSnapshot) (*order.Order, error) {
	args := m.Called(ctx, userID, orderNo, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) RequestRefund(ctx context.Context, userID int64, orderNo string, in orderapp.RefundRequestInput) (*order.Order, error) {
	args := m.Called(ctx, userID, orderNo, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) PresignRefundAttachment(ctx context.Context, userID int64, orderNo, fileName, contentType string) (*orderapp.UploadTicket, error) {
	args := m.Called(ctx, userID, orderNo, fileName, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderapp.UploadTicket), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateCheckout(ctx context.Context, userID int64, orderNo string) (*paymentapp.CheckoutResult, error) {
	args := m.Called(ctx, userID, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.CheckoutResult), args.Error(1)
}

func (m *MockPaymentService) Capture(ctx context.Context, userID, paymentID int64) (*payment.Attempt, error) {
	args := m.Called(ctx, userID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *MockPaymentService) CancelAttempt(ctx context.Context, userID, paymentID int64) (*payment.Attempt, error) {
	args := m.Called(ctx, userID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) HandleWebhook(ctx context.Context, headers map[string]string, body []byte) (*paymentapp.WebhookResult, error) {
	args := m.Called(ctx, headers, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.WebhookResult), args.Error(1)
}

type MockAdminOrderService struct {
	mock.Mock
}

func (m *MockAdminOrderService) Cancel(ctx context.Context, orderNo, reason string) (*order.Order, error) {
	args := m.Called(ctx, orderNo, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockAdminOrderService) Close(ctx context.Context, orderNo, note string) (*order.Order, error) {
	args := m.Called(ctx, orderNo, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockAdminOrderService) ConfirmRefund(ctx context.Context, orderNo string, cmd order.ConfirmRefundCommand) (*orderapp.RefundConfirmation, error) {
	args := m.Called(ctx, orderNo, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderapp.RefundConfirmation), args.Error(1)
}

func (m *MockAdminOrderService) List(ctx context.Context, f order.ListFilter) ([]*order.Order, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*order.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockAdminOrderService) Get(ctx context.Context, orderNo string) (*order.Order, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockAdminOrderService) StatusLogs(ctx context.Context, orderNo string) ([]order.StatusLog, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.StatusLog), args.Error(1)
}

func (m *MockAdminOrderService) InventoryLogs(ctx context.Context, orderNo string) ([]order.InventoryLog, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.InventoryLog), args.Error(1)
}

func (m *MockAdminOrderService) DiscountApplications(ctx context.Context, orderNo string) ([]pricing.Applied, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pricing.Applied), args.Error(1)
}

func (m *MockAdminOrderService) Stats(ctx context.Context) (order.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(order.Stats), args.Error(1)
}

type MockAdminPaymentService struct {
	mock.Mock
}

func (m *MockAdminPaymentService) PaymentDetail(ctx context.Context, paymentID int64) (*paymentapp.PaymentDetail, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.PaymentDetail), args.Error(1)
}

func (m *MockAdminPaymentService) RefundDetail(ctx context.Context, refundID int64) (*payment.Refund, error) {
	args := m.Called(ctx, refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Refund), args.Error(1)
}

func (m *MockAdminPaymentService) SyncPayment(ctx context.Context, paymentID int64) (*payment.Attempt, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

type MockDiscountAdminService struct {
	mock.Mock
}

func (m *MockDiscountAdminService) UpsertPolicy(ctx context.Context, cmd pricingapp.UpsertPolicyCommand) (*pricingapp.PolicyResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricingapp.PolicyResult), args.Error(1)
}

func (m *MockDiscountAdminService) CreateCode(ctx context.Context, cmd pricingapp.CreateCodeCommand) (*pricing.Code, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Code), args.Error(1)
}

func (m *MockDiscountAdminService) RecomputeFxAmountsAll(ctx context.Context, batch int) (pricingapp.RecomputeReport, error) {
	args := m.Called(ctx, batch)
	return args.Get(0).(pricingapp.RecomputeReport), args.Error(1)
}

func (m *MockDiscountAdminService) ListPolicies(ctx context.Context, q pricingapp.PolicyQuery) ([]*pricing.Policy, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*pricing.Policy), args.Get(1).(int64), args.Error(2)
}

func (m *MockDiscountAdminService) PatchPolicy(ctx context.Context, id int64, cmd pricingapp.PatchPolicyCommand) (*pricingapp.PolicyResult, error) {
	args := m.Called(ctx, id, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricingapp.PolicyResult), args.Error(1)
}

func (m *MockDiscountAdminService) DeletePolicy(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDiscountAdminService) ListCodes(ctx context.Context, q pricingapp.CodeQuery) ([]*pricing.Code, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*pricing.Code), args.Get(1).(int64), args.Error(2)
}

func (m *MockDiscountAdminService) PatchCode(ctx context.Context, id int64, cmd pricingapp.PatchCodeCommand) (*pricing.Code, error) {
	args := m.Called(ctx, id, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Code), args.Error(1)
}

func (m *MockDiscountAdminService) DeleteCode(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDiscountAdminService) CodeProducts(ctx context.Context, id int64) (*pricingapp.CodeProducts, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricingapp.CodeProducts), args.Error(1)
}

func (m *MockDiscountAdminService) ReplaceCodeProducts(ctx context.Context, id int64, mode pricing.ScopeMode, productIDs []int64) (*pricingapp.CodeProducts, error) {
	args := m.Called(ctx, id, mode, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricingapp.CodeProducts), args.Error(1)
}

type MockFxSyncer struct {
	mock.Mock
}

func (m *MockFxSyncer) SyncLatest(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
