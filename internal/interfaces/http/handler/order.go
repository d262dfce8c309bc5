package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	orderapp "github.com/intlshop/backend/internal/application/order"
	"github.com/intlshop/backend/internal/domain/order"
)

// OrderService is the shopper-facing order API
type OrderService interface {
	Preview(ctx context.Context, userID int64, in orderapp.PriceInput) (*orderapp.Quote, error)
	Create(ctx context.Context, userID int64, in orderapp.CreateInput) (*orderapp.Detail, error)
	Get(ctx context.Context, userID int64, orderNo string) (*orderapp.Detail, error)
	Cancel(ctx context.Context, userID int64, orderNo, reason string) (*order.Order, error)
	ChangeAddress(ctx context.Context, userID int64, orderNo string, addr order.AddressSnapshot) (*order.Order, error)
	RequestRefund(ctx context.Context, userID int64, orderNo string, in orderapp.RefundRequestInput) (*order.Order, error)
	PresignRefundAttachment(ctx context.Context, userID int64, orderNo, fileName, contentType string) (*orderapp.UploadTicket, error)
}

// OrderHandler serves the shopper's order endpoints
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Preview prices a cart or SKU list without saving anything
func (h *OrderHandler) Preview(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req PriceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	quote, err := h.orders.Preview(c.Request.Context(), userID, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toQuoteResponse(quote))
}

// Create places an order. A discount code that cannot be applied does not fail
// the request; the reason is returned with the order.
func (h *OrderHandler) Create(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	detail, err := h.orders.Create(c.Request.Context(), userID, orderapp.CreateInput{
		PriceInput: req.toInput(),
		Address:    req.Address.toSnapshot(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toDetailResponse(detail))
}

// Get returns one of the caller's orders with its status history
func (h *OrderHandler) Get(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	detail, err := h.orders.Get(c.Request.Context(), userID, c.Param("orderNo"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDetailResponse(detail))
}

// Cancel cancels an unpaid order
func (h *OrderHandler) Cancel(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	o, err := h.orders.Cancel(c.Request.Context(), userID, c.Param("orderNo"), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(o))
}

// ChangeAddress replaces the shipping address once
func (h *OrderHandler) ChangeAddress(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req AddressRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := h.orders.ChangeAddress(c.Request.Context(), userID, c.Param("orderNo"), req.toSnapshot())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(o))
}

// RequestRefund moves a paid order into REFUND_REQUESTED
func (h *OrderHandler) RequestRefund(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req RefundRequestRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := h.orders.RequestRefund(c.Request.Context(), userID, c.Param("orderNo"), orderapp.RefundRequestInput{
		ReasonCode:  order.RefundReasonCode(req.ReasonCode),
		ReasonText:  req.ReasonText,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(o))
}

// PresignRefundAttachment issues an upload URL for refund evidence
func (h *OrderHandler) PresignRefundAttachment(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req AttachmentUploadRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ticket, err := h.orders.PresignRefundAttachment(c.Request.Context(), userID, c.Param("orderNo"), req.FileName, req.ContentType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, UploadTicketResponse{Key: ticket.Key, UploadURL: ticket.URL, ExpiresAt: ticket.ExpiresAt})
}
