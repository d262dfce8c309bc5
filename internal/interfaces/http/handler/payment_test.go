package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	paymentapp "github.com/intlshop/backend/internal/application/payment"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/interfaces/http/dto"
)

func paymentRouter(svc PaymentService, userID int64) *gin.Engine {
	h := NewPaymentHandler(svc)
	r := newRouter(asUser(userID))
	r.POST("/payments/paypal/checkout", h.Checkout)
	r.POST("/payments/:paymentId/capture", h.Capture)
	r.POST("/payments/:paymentId/cancel", h.Cancel)
	return r
}

func sampleAttempt(status payment.AttemptStatus) *payment.Attempt {
	return &payment.Attempt{
		ID:              31,
		OrderNo:         "ORD-1",
		UserID:          7,
		Channel:         payment.ChannelPayPal,
		ExternalOrderID: "5O190127TN364715T",
		Status:          status,
		AmountMinor:     2660,
		Currency:        "EUR",
	}
}

func TestPaymentHandler_Checkout(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("CreateCheckout", mock.Anything, int64(7), "ORD-1").Return(&paymentapp.CheckoutResult{
		PaymentID:       31,
		ExternalOrderID: "5O190127TN364715T",
		ApproveURL:      "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T",
		Status:          payment.AttemptPending,
	}, nil)

	w := doJSON(paymentRouter(svc, 7), http.MethodPost, "/payments/paypal/checkout", map[string]any{"order_no": "ORD-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp CheckoutResponse
	decodeData(t, w, &resp)
	assert.Equal(t, int64(31), resp.PaymentID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Contains(t, resp.ApproveURL, "token=")
}

func TestPaymentHandler_CheckoutGatewayFailure(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("CreateCheckout", mock.Anything, int64(7), "ORD-1").
		Return(nil, shared.NewGatewayError(errors.New("503"), "paypal create order failed"))

	w := doJSON(paymentRouter(svc, 7), http.MethodPost, "/payments/paypal/checkout", map[string]any{"order_no": "ORD-1"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeGatewayFailure, decodeError(t, w).Code)
}

func TestPaymentHandler_Capture(t *testing.T) {
	svc := new(MockPaymentService)
	captured := sampleAttempt(payment.AttemptSuccess)
	captured.CaptureID = "3C679366HH908993F"
	svc.On("Capture", mock.Anything, int64(7), int64(31)).Return(captured, nil)

	w := doJSON(paymentRouter(svc, 7), http.MethodPost, "/payments/31/capture", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp PaymentResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "SUCCESS", resp.Status)
	assert.Equal(t, "3C679366HH908993F", resp.CaptureID)
}

func TestPaymentHandler_CaptureBadID(t *testing.T) {
	svc := new(MockPaymentService)

	w := doJSON(paymentRouter(svc, 7), http.MethodPost, "/payments/abc/capture", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Capture")
}

func TestPaymentHandler_Cancel(t *testing.T) {
	t.Run("open attempt", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("CancelAttempt", mock.Anything, int64(7), int64(31)).Return(sampleAttempt(payment.AttemptClosed), nil)

		w := doJSON(paymentRouter(svc, 7), http.MethodPost, "/payments/31/cancel", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("captured attempt conflicts", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("CancelAttempt", mock.Anything, int64(7), int64(31)).
			Return(nil, shared.NewConflictError("payment 31 already captured"))

		w := doJSON(paymentRouter(svc, 7), http.MethodPost, "/payments/31/cancel", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func webhookRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/payments/paypal/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Paypal-Transmission-Id", "tx-1")
	req.Header.Set("Paypal-Transmission-Sig", "sig")
	return req
}

func TestPayPalWebhookHandler(t *testing.T) {
	body := `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`

	tests := []struct {
		name   string
		result *paymentapp.WebhookResult
		err    error
		status int
	}{
		{"processed", &paymentapp.WebhookResult{EventID: "WH-1", EventType: "PAYMENT.CAPTURE.COMPLETED", Result: paymentapp.WebhookProcessed}, nil, http.StatusOK},
		{"replayed", &paymentapp.WebhookResult{EventID: "WH-1", Result: paymentapp.WebhookReplayed}, nil, http.StatusOK},
		{"ignored", &paymentapp.WebhookResult{EventID: "WH-1", Result: paymentapp.WebhookIgnored}, nil, http.StatusOK},
		{"unknown order", &paymentapp.WebhookResult{EventID: "WH-1", Result: paymentapp.WebhookUnknownOrder}, nil, http.StatusOK},
		{"bad signature", nil, shared.NewIllegalParamError("webhook signature verification failed"), http.StatusBadRequest},
		{"storage down is retried", nil, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := new(MockWebhookProcessor)
			proc.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(h map[string]string) bool {
				return h["Paypal-Transmission-Id"] == "tx-1" && h["Paypal-Transmission-Sig"] == "sig"
			}), []byte(body)).Return(tt.result, tt.err)

			r := newRouter()
			r.POST("/payments/paypal/webhook", NewPayPalWebhookHandler(proc).Handle)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, webhookRequest(body))

			assert.Equal(t, tt.status, w.Code)
			if tt.result != nil {
				assert.Contains(t, w.Body.String(), `"result":"`+tt.result.Result+`"`)
			}
			proc.AssertExpectations(t)
		})
	}
}

func TestPayPalWebhookHandler_EmptyBody(t *testing.T) {
	proc := new(MockWebhookProcessor)
	r := newRouter()
	r.POST("/payments/paypal/webhook", NewPayPalWebhookHandler(proc).Handle)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, webhookRequest(""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	proc.AssertNotCalled(t, "HandleWebhook")
}
