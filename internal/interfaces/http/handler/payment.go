package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentapp "github.com/intlshop/backend/internal/application/payment"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/interfaces/http/dto"
)

// PaymentService is the shopper-facing payment API
type PaymentService interface {
	CreateCheckout(ctx context.Context, userID int64, orderNo string) (*paymentapp.CheckoutResult, error)
	Capture(ctx context.Context, userID, paymentID int64) (*payment.Attempt, error)
	CancelAttempt(ctx context.Context, userID, paymentID int64) (*payment.Attempt, error)
}

// WebhookProcessor applies verified gateway notifications
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, headers map[string]string, body []byte) (*paymentapp.WebhookResult, error)
}

// PaymentHandler serves checkout, capture and cancel for the shopper
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Checkout opens a PayPal order, reusing a still-open attempt when possible
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.payments.CreateCheckout(c.Request.Context(), userID, req.OrderNo)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCheckoutResponse(result))
}

// Capture captures an approved attempt on the shopper's return from PayPal
func (h *PaymentHandler) Capture(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	paymentID, ok := h.paramID(c, "paymentId")
	if !ok {
		return
	}

	a, err := h.payments.Capture(c.Request.Context(), userID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(a))
}

// Cancel abandons an open attempt
func (h *PaymentHandler) Cancel(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	paymentID, ok := h.paramID(c, "paymentId")
	if !ok {
		return
	}

	a, err := h.payments.CancelAttempt(c.Request.Context(), userID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(a))
}

// PayPalWebhookHandler receives PayPal notifications. It is anonymous; the
// gateway signature is the authentication.
type PayPalWebhookHandler struct {
	BaseHandler
	processor WebhookProcessor
}

// NewPayPalWebhookHandler creates a new PayPalWebhookHandler
func NewPayPalWebhookHandler(processor WebhookProcessor) *PayPalWebhookHandler {
	return &PayPalWebhookHandler{processor: processor}
}

// Handle answers 200 for processed, replayed, ignored and unknown-order events
// so PayPal stops retrying. Bad signatures get a 4xx; internal failures a 5xx
// so the delivery is retried.
func (h *PayPalWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Failed to read request body")
		return
	}
	if len(body) == 0 {
		h.BadRequest(c, "Empty webhook body")
		return
	}

	result, err := h.processor.HandleWebhook(c.Request.Context(), flattenHeaders(c.Request.Header), body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, WebhookAck{
		EventID:   result.EventID,
		EventType: result.EventType,
		Result:    result.Result,
	})
}

// flattenHeaders keeps the first value of each header
func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for k, v := range header {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
