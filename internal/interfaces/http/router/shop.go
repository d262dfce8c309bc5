package router

import (
	"github.com/gin-gonic/gin"

	"github.com/intlshop/backend/internal/interfaces/http/handler"
	"github.com/intlshop/backend/internal/interfaces/http/middleware"
)

// ShopHandlers are the handlers behind the shop API
type ShopHandlers struct {
	Orders      *handler.OrderHandler
	Payments    *handler.PaymentHandler
	Webhook     *handler.PayPalWebhookHandler
	AdminOrders *handler.AdminOrderHandler
	Discounts   *handler.DiscountAdminHandler
	Health      *handler.HealthHandler
}

// ShopAuth is the authentication chain for protected routes
type ShopAuth struct {
	// User authenticates any shopper
	User gin.HandlerFunc
	// Admin runs after User and rejects non-admins
	Admin gin.HandlerFunc
	// After runs once the caller is known, e.g. span attributes
	After []gin.HandlerFunc
}

func (a ShopAuth) user() []gin.HandlerFunc {
	return append([]gin.HandlerFunc{a.User}, a.After...)
}

func (a ShopAuth) admin() []gin.HandlerFunc {
	return append([]gin.HandlerFunc{a.User, a.Admin}, a.After...)
}

// RegisterShopRoutes mounts the shopper, admin, webhook and health routes
func RegisterShopRoutes(r *Router, h ShopHandlers, auth ShopAuth) {
	r.RegisterRoot(NewDomainGroup("health", "").GET("/health", h.Health.Health))

	// PayPal authenticates with its signature, not a JWT
	r.Register(NewDomainGroup("paypal-webhook", "/payments/paypal").
		POST("/webhook", h.Webhook.Handle))

	r.Register(NewDomainGroup("orders", "/orders").
		Use(auth.user()...).
		Use(middleware.IdempotencyKey()).
		POST("/preview", h.Orders.Preview).
		POST("", h.Orders.Create).
		GET("/:orderNo", h.Orders.Get).
		POST("/:orderNo/cancel", h.Orders.Cancel).
		PATCH("/:orderNo/address", h.Orders.ChangeAddress).
		POST("/:orderNo/refund-request", h.Orders.RequestRefund).
		POST("/:orderNo/refund-attachments", h.Orders.PresignRefundAttachment))

	r.Register(NewDomainGroup("payments", "/payments").
		Use(auth.user()...).
		Use(middleware.IdempotencyKey()).
		POST("/paypal/checkout", h.Payments.Checkout).
		POST("/:paymentId/capture", h.Payments.Capture).
		POST("/:paymentId/cancel", h.Payments.Cancel))

	admin := NewDomainGroup("admin", "/admin").Use(auth.admin()...)
	admin.Group("admin-orders", "/orders").
		GET("", h.AdminOrders.List).
		GET("/:orderNo", h.AdminOrders.Get).
		GET("/:orderNo/status-logs", h.AdminOrders.StatusLogs).
		GET("/:orderNo/inventory-logs", h.AdminOrders.InventoryLogs).
		GET("/:orderNo/discounts", h.AdminOrders.DiscountApplications).
		POST("/:orderNo/cancel", h.AdminOrders.Cancel).
		POST("/:orderNo/close", h.AdminOrders.Close).
		POST("/:orderNo/refund-confirm", h.AdminOrders.ConfirmRefund)
	admin.Group("admin-payments", "/payments").
		GET("/:paymentId", h.AdminOrders.PaymentDetail).
		POST("/:paymentId/sync", h.AdminOrders.SyncPayment)
	admin.Group("admin-refunds", "/refunds").
		GET("/:refundId", h.AdminOrders.RefundDetail)
	admin.Group("admin-stats", "/stats").
		GET("/overview", h.AdminOrders.Stats)
	admin.Group("admin-discounts", "").
		GET("/discount-policies", h.Discounts.ListPolicies).
		POST("/discount-policies", h.Discounts.UpsertPolicy).
		PATCH("/discount-policies/:policyId", h.Discounts.PatchPolicy).
		DELETE("/discount-policies/:policyId", h.Discounts.DeletePolicy).
		GET("/discount-codes", h.Discounts.ListCodes).
		POST("/discount-codes", h.Discounts.CreateCode).
		PATCH("/discount-codes/:codeId", h.Discounts.PatchCode).
		DELETE("/discount-codes/:codeId", h.Discounts.DeleteCode).
		GET("/discount-codes/:codeId/products", h.Discounts.CodeProducts).
		PUT("/discount-codes/:codeId/products", h.Discounts.ReplaceCodeProducts).
		POST("/fx/sync", h.Discounts.SyncFx)
	r.Register(admin)
}
