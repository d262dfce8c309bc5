package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	orderapp "github.com/intlshop/backend/internal/application/order"
	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared"
)

func adminRouter(orders AdminOrderService, payments AdminPaymentService) *gin.Engine {
	h := NewAdminOrderHandler(orders, payments)
	r := newRouter()
	r.POST("/admin/orders/:orderNo/cancel", h.Cancel)
	r.POST("/admin/orders/:orderNo/close", h.Close)
	r.POST("/admin/orders/:orderNo/refund-confirm", h.ConfirmRefund)
	r.POST("/admin/payments/:paymentId/sync", h.SyncPayment)
	r.GET("/admin/orders", h.List)
	r.GET("/admin/orders/:orderNo", h.Get)
	r.GET("/admin/orders/:orderNo/status-logs", h.StatusLogs)
	r.GET("/admin/orders/:orderNo/inventory-logs", h.InventoryLogs)
	r.GET("/admin/orders/:orderNo/discounts", h.DiscountApplications)
	r.GET("/admin/payments/:paymentId", h.PaymentDetail)
	r.GET("/admin/refunds/:refundId", h.RefundDetail)
	r.GET("/admin/stats/overview", h.Stats)
	return r
}

func TestAdminOrderHandler_Cancel(t *testing.T) {
	orders := new(MockAdminOrderService)
	cancelled := sampleOrder()
	cancelled.Status = order.StatusCancelled
	cancelled.CancelReason = "fraud"
	orders.On("Cancel", mock.Anything, "ORD-1", "fraud").Return(cancelled, nil)

	w := doJSON(adminRouter(orders, nil), http.MethodPost, "/admin/orders/ORD-1/cancel", map[string]any{"reason": "fraud"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp OrderResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "fraud", resp.CancelReason)
}

func TestAdminOrderHandler_Close(t *testing.T) {
	t.Run("delivered order closes", func(t *testing.T) {
		orders := new(MockAdminOrderService)
		closed := sampleOrder()
		closed.Status = order.StatusClosed
		orders.On("Close", mock.Anything, "ORD-1", "").Return(closed, nil)

		w := doJSON(adminRouter(orders, nil), http.MethodPost, "/admin/orders/ORD-1/close", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong state conflicts", func(t *testing.T) {
		orders := new(MockAdminOrderService)
		orders.On("Close", mock.Anything, "ORD-1", "done").Return(nil, shared.NewConflictError("order is PAID"))

		w := doJSON(adminRouter(orders, nil), http.MethodPost, "/admin/orders/ORD-1/close", map[string]any{"note": "done"})

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAdminOrderHandler_ConfirmRefund(t *testing.T) {
	t.Run("full refund with empty body", func(t *testing.T) {
		orders := new(MockAdminOrderService)
		refunded := sampleOrder()
		refunded.Status = order.StatusRefunded
		orders.On("ConfirmRefund", mock.Anything, "ORD-1", order.ConfirmRefundCommand{Items: []order.RefundItemInput{}}).
			Return(&orderapp.RefundConfirmation{
				Order: refunded,
				Refund: &payment.Refund{
					ID: 4, RefundNo: "RF-1", OrderNo: "ORD-1", PaymentID: 31,
					Status: payment.RefundSuccess, AmountMinor: 2660, Currency: "EUR", Initiator: payment.InitiatorAdmin,
				},
			}, nil)

		w := doJSON(adminRouter(orders, nil), http.MethodPost, "/admin/orders/ORD-1/refund-confirm", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp RefundConfirmationResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "REFUNDED", resp.Order.Status)
		if assert.NotNil(t, resp.Refund) {
			assert.Equal(t, "SUCCESS", resp.Refund.Status)
			assert.Equal(t, "ADMIN", resp.Refund.Initiator)
		}
	})

	t.Run("itemized refund", func(t *testing.T) {
		orders := new(MockAdminOrderService)
		amount := int64(1000)
		orders.On("ConfirmRefund", mock.Anything, "ORD-1", mock.MatchedBy(func(cmd order.ConfirmRefundCommand) bool {
			return len(cmd.Items) == 1 && cmd.Items[0].OrderItemID == 11 && cmd.Items[0].Quantity == 1 &&
				cmd.Items[0].AmountMinor != nil && *cmd.Items[0].AmountMinor == amount &&
				cmd.ShippingAmountMinor != nil && *cmd.ShippingAmountMinor == 0
		})).Return(&orderapp.RefundConfirmation{Order: sampleOrder()}, nil)

		w := doJSON(adminRouter(orders, nil), http.MethodPost, "/admin/orders/ORD-1/refund-confirm", map[string]any{
			"items":                 []map[string]any{{"order_item_id": 11, "quantity": 1, "amount_minor": amount}},
			"shipping_amount_minor": 0,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertExpectations(t)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		orders := new(MockAdminOrderService)

		w := doJSON(adminRouter(orders, nil), http.MethodPost, "/admin/orders/ORD-1/refund-confirm", map[string]any{
			"items_amount_minor": -5,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		orders.AssertNotCalled(t, "ConfirmRefund")
	})
}

func TestAdminOrderHandler_SyncPayment(t *testing.T) {
	payments := new(MockAdminPaymentService)
	payments.On("SyncPayment", mock.Anything, int64(31)).Return(sampleAttempt(payment.AttemptSuccess), nil)

	w := doJSON(adminRouter(nil, payments), http.MethodPost, "/admin/payments/31/sync", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp PaymentResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "SUCCESS", resp.Status)
}
