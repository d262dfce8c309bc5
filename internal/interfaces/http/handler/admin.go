package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	orderapp "github.com/intlshop/backend/internal/application/order"
	paymentapp "github.com/intlshop/backend/internal/application/payment"
	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/pricing"
)

// AdminOrderService is the operator order API
type AdminOrderService interface {
	Cancel(ctx context.Context, orderNo, reason string) (*order.Order, error)
	Close(ctx context.Context, orderNo, note string) (*order.Order, error)
	ConfirmRefund(ctx context.Context, orderNo string, cmd order.ConfirmRefundCommand) (*orderapp.RefundConfirmation, error)
	List(ctx context.Context, f order.ListFilter) ([]*order.Order, int64, error)
	Get(ctx context.Context, orderNo string) (*order.Order, error)
	StatusLogs(ctx context.Context, orderNo string) ([]order.StatusLog, error)
	InventoryLogs(ctx context.Context, orderNo string) ([]order.InventoryLog, error)
	DiscountApplications(ctx context.Context, orderNo string) ([]pricing.Applied, error)
	Stats(ctx context.Context) (order.Stats, error)
}

// AdminPaymentService is the operator payment API
type AdminPaymentService interface {
	SyncPayment(ctx context.Context, paymentID int64) (*payment.Attempt, error)
	PaymentDetail(ctx context.Context, paymentID int64) (*paymentapp.PaymentDetail, error)
	RefundDetail(ctx context.Context, refundID int64) (*payment.Refund, error)
}

// AdminCloseRequest carries the operator's note
type AdminCloseRequest struct {
	Note string `json:"note" binding:"omitempty,max=255"`
}

// RefundItemRequest refunds part of one order line
type RefundItemRequest struct {
	OrderItemID int64  `json:"order_item_id" binding:"required,gt=0"`
	Quantity    int64  `json:"quantity" binding:"required,gte=1"`
	AmountMinor *int64 `json:"amount_minor" binding:"omitempty,gte=0"`
	Reason      string `json:"reason" binding:"omitempty,max=255"`
}

// ConfirmRefundRequest is the operator's refund plan. An empty body refunds the
// full pay amount.
type ConfirmRefundRequest struct {
	ItemsAmountMinor    *int64              `json:"items_amount_minor" binding:"omitempty,gte=0"`
	ShippingAmountMinor *int64              `json:"shipping_amount_minor" binding:"omitempty,gte=0"`
	Items               []RefundItemRequest `json:"items" binding:"omitempty,max=100,dive"`
	Note                string              `json:"note" binding:"omitempty,max=255"`
}

func (r ConfirmRefundRequest) toCommand() order.ConfirmRefundCommand {
	items := make([]order.RefundItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, order.RefundItemInput{
			OrderItemID: it.OrderItemID,
			Quantity:    it.Quantity,
			AmountMinor: it.AmountMinor,
			Reason:      it.Reason,
		})
	}
	return order.ConfirmRefundCommand{
		ItemsAmountMinor:    r.ItemsAmountMinor,
		ShippingAmountMinor: r.ShippingAmountMinor,
		Items:               items,
		Note:                r.Note,
	}
}

// RefundConfirmationResponse is the order after confirmation and its refund
type RefundConfirmationResponse struct {
	Order  OrderResponse   `json:"order"`
	Refund *RefundResponse `json:"refund,omitempty"`
}

// AdminOrderHandler serves operator order and payment actions and queries
type AdminOrderHandler struct {
	BaseHandler
	orders   AdminOrderService
	payments AdminPaymentService
}

// NewAdminOrderHandler creates a new AdminOrderHandler
func NewAdminOrderHandler(orders AdminOrderService, payments AdminPaymentService) *AdminOrderHandler {
	return &AdminOrderHandler{orders: orders, payments: payments}
}

// Cancel cancels any unpaid order
func (h *AdminOrderHandler) Cancel(c *gin.Context) {
	var req CancelOrderRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	o, err := h.orders.Cancel(c.Request.Context(), c.Param("orderNo"), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(o))
}

// Close closes a delivered order
func (h *AdminOrderHandler) Close(c *gin.Context) {
	var req AdminCloseRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	o, err := h.orders.Close(c.Request.Context(), c.Param("orderNo"), req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(o))
}

// ConfirmRefund issues the refund for a REFUND_REQUESTED order
func (h *AdminOrderHandler) ConfirmRefund(c *gin.Context) {
	var req ConfirmRefundRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	res, err := h.orders.ConfirmRefund(c.Request.Context(), c.Param("orderNo"), req.toCommand())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RefundConfirmationResponse{
		Order:  toOrderResponse(res.Order),
		Refund: toRefundResponse(res.Refund),
	})
}

// SyncPayment polls PayPal for one attempt and applies what it reports
func (h *AdminOrderHandler) SyncPayment(c *gin.Context) {
	paymentID, ok := h.paramID(c, "paymentId")
	if !ok {
		return
	}

	a, err := h.payments.SyncPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(a))
}
