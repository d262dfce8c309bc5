package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	orderapp "github.com/intlshop/backend/internal/application/order"
	paymentapp "github.com/intlshop/backend/internal/application/payment"
	pricingapp "github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/auth"
	"github.com/intlshop/backend/internal/infrastructure/cache"
	"github.com/intlshop/backend/internal/infrastructure/persistence"
	"github.com/intlshop/backend/internal/infrastructure/storage"
	"github.com/intlshop/backend/internal/interfaces/http/handler"
	"github.com/intlshop/backend/internal/interfaces/http/middleware"
	"github.com/intlshop/backend/internal/interfaces/http/router"
	"github.com/intlshop/backend/tests/testutil"
)

// fakeGateway approves and completes every checkout, capture and refund
type fakeGateway struct {
	mu       sync.Mutex
	orders   int
	captures map[string]int
	refunds  []payment.RefundCaptureRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{captures: make(map[string]int)}
}

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.CreateOrderRequest) (payment.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders++
	id := fmt.Sprintf("PP-%d", g.orders)
	return payment.GatewayOrder{ID: id, Status: "CREATED", ApproveURL: "https://paypal.test/approve/" + id}, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, id string) (payment.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captures[id] > 0 {
		return completedOrder(id), nil
	}
	return payment.GatewayOrder{ID: id, Status: "APPROVED", ApproveURL: "https://paypal.test/approve/" + id}, nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, id, _ string) (payment.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captures[id]++
	return completedOrder(id), nil
}

func (g *fakeGateway) RefundCapture(_ context.Context, req payment.RefundCaptureRequest) (payment.GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	return payment.GatewayRefund{ID: fmt.Sprintf("RF-%d", len(g.refunds)), Status: "COMPLETED"}, nil
}

func (g *fakeGateway) GetRefund(_ context.Context, id string) (payment.GatewayRefund, error) {
	return payment.GatewayRefund{ID: id, Status: "COMPLETED"}, nil
}

func (g *fakeGateway) VerifyWebhookAndReplayProtection(context.Context, map[string]string, []byte) (payment.WebhookEvent, bool, error) {
	return payment.WebhookEvent{}, false, shared.NewIllegalParamError("webhook verification is not available")
}

func (g *fakeGateway) TryExtractOrderID(payment.WebhookEvent) (string, bool) {
	return "", false
}

func (g *fakeGateway) ReleaseWebhookEvent(context.Context, string) error {
	return nil
}

func (g *fakeGateway) refundRequests() []payment.RefundCaptureRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.RefundCaptureRequest(nil), g.refunds...)
}

func completedOrder(id string) payment.GatewayOrder {
	now := time.Now()
	return payment.GatewayOrder{
		ID:      id,
		Status:  "COMPLETED",
		Capture: &payment.GatewayCapture{ID: "CAP-" + id, Status: "COMPLETED", CreateTime: &now},
	}
}

// newShopApp wires the HTTP stack the way the server does, over db and an
// in-memory store set.
func newShopApp(t *testing.T, db *gorm.DB, gateway payment.Gateway) *gin.Engine {
	t.Helper()

	log := zap.NewNop()
	clock := shared.SystemClock{}
	stores := cache.NewInMemoryStores()
	t.Cleanup(func() { _ = stores.Close() })

	orderRepo := persistence.NewGormOrderRepository(db)
	paymentRepo := persistence.NewGormPaymentRepository(db)
	catalog := persistence.NewGormCatalogReader(db)
	discountRepo := persistence.NewGormDiscountRepository(db)
	fxRepo := persistence.NewGormFxRateRepository(db)
	currencyRepo := persistence.NewGormCurrencyRepository(db)

	currencies := pricingapp.NewCurrencyConfigService(pricingapp.CurrencyServiceConfig{
		Repo: currencyRepo, Clock: clock, Logger: log,
	})
	fxService := pricingapp.NewFxRateService(pricingapp.FxServiceConfig{
		Repo: fxRepo, Currencies: currencyRepo, BaseCurrency: "USD", Clock: clock, Logger: log,
	})
	discounts := pricingapp.NewDiscountAdminService(pricingapp.DiscountAdminConfig{
		Repo: discountRepo, Rates: fxRepo, Currencies: currencies, BaseCurrency: "USD", FxMaxAge: 24 * time.Hour, Clock: clock, Logger: log,
	})
	engine := pricing.NewEngine(discountRepo, fxService, currencies, clock, pricing.EngineConfig{
		BaseCurrency: "USD", FxMaxAge: 24 * time.Hour,
	})
	orders := orderapp.NewService(orderapp.Config{
		Orders:           orderRepo,
		Skus:             catalog,
		Carts:            catalog,
		Discounts:        engine,
		Claims:           stores.AddressClaims,
		Attachments:      storage.NewStubAttachmentStorage(),
		IDs:              shared.UUIDGenerator{},
		Clock:            clock,
		Logger:           log,
		PaymentTTL:       30 * time.Minute,
		AddressChangeTTL: 30 * 24 * time.Hour,
		TimeoutReason:    "payment timeout",
	})
	reconciler := paymentapp.NewReconciler(paymentapp.Config{
		Repo:       paymentRepo,
		Gateway:    gateway,
		Currencies: currencies,
		Shipments:  persistence.NewGormShipmentRepository(db),
		Clock:      clock,
		Logger:     log,
		PaymentTTL: 30 * time.Minute,
		ReturnURL:  "https://shop.test/return",
		CancelURL:  "https://shop.test/cancel",
	})
	admin := orderapp.NewAdminService(orderapp.AdminConfig{
		Orders: orderRepo, Reader: orderRepo, Payments: paymentRepo, Refunds: reconciler, Currencies: currencies, Claims: stores.AddressClaims, Clock: clock, Logger: log,
	})

	middleware.SetupValidator()
	e := gin.New()
	e.Use(middleware.RequestID())

	r := router.NewRouter(e)
	router.RegisterShopRoutes(r, router.ShopHandlers{
		Orders:      handler.NewOrderHandler(orders),
		Payments:    handler.NewPaymentHandler(reconciler),
		Webhook:     handler.NewPayPalWebhookHandler(reconciler),
		AdminOrders: handler.NewAdminOrderHandler(admin, reconciler),
		Discounts:   handler.NewDiscountAdminHandler(discounts, fxService),
		Health:      handler.NewHealthHandler("integration"),
	}, router.ShopAuth{
		User:  middleware.JWTAuth(middleware.JWTMiddlewareConfig{Verifier: auth.NewVerifier(testutil.JWTConfig), Logger: log}),
		Admin: middleware.RequireAdmin(log),
	})
	r.Setup()
	return e
}
