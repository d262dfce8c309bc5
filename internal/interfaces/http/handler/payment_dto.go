package handler

import (
	"time"

	paymentapp "github.com/intlshop/backend/internal/application/payment"
	"github.com/intlshop/backend/internal/domain/payment"
)

// CheckoutRequest opens a PayPal checkout for an order
type CheckoutRequest struct {
	OrderNo string `json:"order_no" binding:"required,max=64"`
}

// CheckoutResponse tells the shopper where to approve the payment
type CheckoutResponse struct {
	PaymentID       int64  `json:"payment_id"`
	ExternalOrderID string `json:"external_order_id"`
	ApproveURL      string `json:"approve_url"`
	Status          string `json:"status"`
}

// PaymentResponse is one payment attempt
type PaymentResponse struct {
	ID              int64      `json:"id"`
	OrderNo         string     `json:"order_no"`
	Channel         string     `json:"channel"`
	ExternalOrderID string     `json:"external_order_id,omitempty"`
	CaptureID       string     `json:"capture_id,omitempty"`
	Status          string     `json:"status"`
	AmountMinor     int64      `json:"amount_minor"`
	Currency        string     `json:"currency"`
	LastPolledAt    *time.Time `json:"last_polled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RefundItemResponse is one refunded line
type RefundItemResponse struct {
	OrderItemID int64  `json:"order_item_id"`
	SkuID       int64  `json:"sku_id"`
	Quantity    int64  `json:"quantity"`
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason,omitempty"`
}

// RefundResponse is a refund against a captured payment
type RefundResponse struct {
	ID                  int64                `json:"id"`
	RefundNo            string               `json:"refund_no"`
	OrderNo             string               `json:"order_no"`
	PaymentID           int64                `json:"payment_id"`
	ExternalRefundID    string               `json:"external_refund_id,omitempty"`
	Status              string               `json:"status"`
	AmountMinor         int64                `json:"amount_minor"`
	ItemsAmountMinor    int64                `json:"items_amount_minor"`
	ShippingAmountMinor int64                `json:"shipping_amount_minor"`
	Currency            string               `json:"currency"`
	Initiator           string               `json:"initiator"`
	Note                string               `json:"note,omitempty"`
	Items               []RefundItemResponse `json:"items,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// WebhookAck is the body returned to PayPal
type WebhookAck struct {
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Result    string `json:"result"`
}

func toCheckoutResponse(r *paymentapp.CheckoutResult) CheckoutResponse {
	return CheckoutResponse{
		PaymentID:       r.PaymentID,
		ExternalOrderID: r.ExternalOrderID,
		ApproveURL:      r.ApproveURL,
		Status:          string(r.Status),
	}
}

func toPaymentResponse(a *payment.Attempt) PaymentResponse {
	return PaymentResponse{
		ID:              a.ID,
		OrderNo:         a.OrderNo,
		Channel:         string(a.Channel),
		ExternalOrderID: a.ExternalOrderID,
		CaptureID:       a.CaptureID,
		Status:          string(a.Status),
		AmountMinor:     a.AmountMinor,
		Currency:        a.Currency,
		LastPolledAt:    a.LastPolledAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toRefundResponse(r *payment.Refund) *RefundResponse {
	if r == nil {
		return nil
	}
	items := make([]RefundItemResponse, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, RefundItemResponse{
			OrderItemID: it.OrderItemID,
			SkuID:       it.SkuID,
			Quantity:    it.Quantity,
			AmountMinor: it.AmountMinor,
			Reason:      it.Reason,
		})
	}
	return &RefundResponse{
		ID:                  r.ID,
		RefundNo:            r.RefundNo,
		OrderNo:             r.OrderNo,
		PaymentID:           r.PaymentID,
		ExternalRefundID:    r.ExternalRefundID,
		Status:              string(r.Status),
		AmountMinor:         r.AmountMinor,
		ItemsAmountMinor:    r.ItemsAmountMinor,
		ShippingAmountMinor: r.ShippingAmountMinor,
		Currency:            r.Currency,
		Initiator:           string(r.Initiator),
		Note:                r.Note,
		Items:               items,
		CreatedAt:           r.CreatedAt,
	}
}
