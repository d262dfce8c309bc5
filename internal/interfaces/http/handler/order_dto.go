package handler

import (
	"time"

	orderapp "github.com/intlshop/backend/internal/application/order"
	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/pricing"
)

// Amounts are integers in the currency's minor unit (cents for USD, yen for JPY).

// LineRequest is one SKU line of a DIRECT order
type LineRequest struct {
	SkuID    int64 `json:"sku_id" binding:"required,gt=0"`
	Quantity int64 `json:"quantity" binding:"required,gte=1,lte=999"`
}

// PriceRequest selects what to price
type PriceRequest struct {
	Source       string        `json:"source" binding:"required,oneof=DIRECT CART"`
	Items        []LineRequest `json:"items" binding:"omitempty,max=100,dive"`
	CartItemIDs  []int64       `json:"cart_item_ids" binding:"omitempty,max=100,dive,gt=0"`
	Currency     string        `json:"currency" binding:"omitempty,currency"`
	DiscountCode string        `json:"discount_code" binding:"omitempty,max=64"`
}

func (r PriceRequest) toInput() orderapp.PriceInput {
	lines := make([]orderapp.LineInput, 0, len(r.Items))
	for _, l := range r.Items {
		lines = append(lines, orderapp.LineInput{SkuID: l.SkuID, Quantity: l.Quantity})
	}
	return orderapp.PriceInput{
		Source:       order.Source(r.Source),
		Items:        lines,
		CartItemIDs:  r.CartItemIDs,
		Currency:     r.Currency,
		DiscountCode: r.DiscountCode,
	}
}

// AddressRequest is a shipping address
type AddressRequest struct {
	ReceiverName string `json:"receiver_name" binding:"required,max=64"`
	Phone        string `json:"phone" binding:"required,max=32"`
	Country      string `json:"country" binding:"required,max=64"`
	Province     string `json:"province" binding:"omitempty,max=64"`
	City         string `json:"city" binding:"required,max=64"`
	District     string `json:"district" binding:"omitempty,max=64"`
	AddressLine1 string `json:"address_line1" binding:"required,max=255"`
	AddressLine2 string `json:"address_line2" binding:"omitempty,max=255"`
	Zipcode      string `json:"zipcode" binding:"omitempty,max=20"`
}

func (r AddressRequest) toSnapshot() order.AddressSnapshot {
	return order.AddressSnapshot{
		ReceiverName: r.ReceiverName,
		Phone:        r.Phone,
		Country:      r.Country,
		Province:     r.Province,
		City:         r.City,
		District:     r.District,
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		Zipcode:      r.Zipcode,
	}
}

// CreateOrderRequest prices and places an order
type CreateOrderRequest struct {
	PriceRequest
	Address AddressRequest `json:"address" binding:"required"`
}

// CancelOrderRequest carries an optional cancel reason
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// RefundRequestRequest is the shopper's refund request
type RefundRequestRequest struct {
	ReasonCode  string   `json:"reason_code" binding:"required,oneof=NOT_RECEIVED DAMAGED WRONG_ITEM NOT_AS_DESCRIBED CHANGED_MIND OTHER"`
	ReasonText  string   `json:"reason_text" binding:"omitempty,max=255"`
	Attachments []string `json:"attachments" binding:"omitempty,max=9,dive,max=512"`
}

// AttachmentUploadRequest asks for a presigned upload URL
type AttachmentUploadRequest struct {
	FileName    string `json:"file_name" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required,max=128"`
}

// OrderItemResponse is one order line
type OrderItemResponse struct {
	ID                  int64  `json:"id"`
	ProductID           int64  `json:"product_id"`
	SkuID               int64  `json:"sku_id"`
	Title               string `json:"title"`
	SkuAttrs            string `json:"sku_attrs,omitempty"`
	CoverImageURL       string `json:"cover_image_url,omitempty"`
	UnitPriceMinor      int64  `json:"unit_price_minor"`
	Quantity            int64  `json:"quantity"`
	SubtotalAmountMinor int64  `json:"subtotal_amount_minor"`
	DiscountCodeID      *int64 `json:"discount_code_id,omitempty"`
}

// DiscountResponse is one applied discount with its base-currency trace
type DiscountResponse struct {
	DiscountCodeID  int64      `json:"discount_code_id"`
	Scope           string     `json:"scope"`
	SkuID           *int64     `json:"sku_id,omitempty"`
	Currency        string     `json:"currency"`
	AmountMinor     int64      `json:"amount_minor"`
	BaseCurrency    string     `json:"base_currency"`
	BaseAmountMinor int64      `json:"base_amount_minor"`
	FxRate          string     `json:"fx_rate,omitempty"`
	FxAsOf          *time.Time `json:"fx_as_of,omitempty"`
	FxProvider      string     `json:"fx_provider,omitempty"`
}

// RefundReasonResponse is the shopper's stated refund reason
type RefundReasonResponse struct {
	ReasonCode  string   `json:"reason_code"`
	ReasonText  string   `json:"reason_text,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// OrderResponse is an order as shown to shoppers and operators
type OrderResponse struct {
	ID                  int64                 `json:"id"`
	OrderNo             string                `json:"order_no"`
	UserID              int64                 `json:"user_id"`
	Status              string                `json:"status"`
	Source              string                `json:"source"`
	Currency            string                `json:"currency"`
	Items               []OrderItemResponse   `json:"items"`
	TotalAmountMinor    int64                 `json:"total_amount_minor"`
	DiscountAmountMinor int64                 `json:"discount_amount_minor"`
	ShippingAmountMinor int64                 `json:"shipping_amount_minor"`
	TaxAmountMinor      int64                 `json:"tax_amount_minor"`
	PayAmountMinor      int64                 `json:"pay_amount_minor"`
	DiscountCodeID      *int64                `json:"discount_code_id,omitempty"`
	Discounts           []DiscountResponse    `json:"discounts,omitempty"`
	Address             order.AddressSnapshot `json:"address"`
	AddressChanged      bool                  `json:"address_changed"`
	ActivePaymentID     *int64                `json:"active_payment_id,omitempty"`
	CancelReason        string                `json:"cancel_reason,omitempty"`
	RefundRequest       *RefundReasonResponse `json:"refund_request,omitempty"`
	PaidAt              *time.Time            `json:"paid_at,omitempty"`
	CancelledAt         *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// StatusLogResponse is one audit entry
type StatusLogResponse struct {
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Source     string    `json:"source"`
	Note       string    `json:"note,omitempty"`
	At         time.Time `json:"at"`
}

// OrderDetailResponse is an order with its audit trail
type OrderDetailResponse struct {
	Order           OrderResponse       `json:"order"`
	StatusLogs      []StatusLogResponse `json:"status_logs"`
	DiscountFailure *pricing.Failure    `json:"discount_failure,omitempty"`
}

// QuoteResponse is a priced but unsaved order
type QuoteResponse struct {
	Currency            string              `json:"currency"`
	CurrencyFallback    bool                `json:"currency_fallback"`
	Items               []OrderItemResponse `json:"items"`
	TotalAmountMinor    int64               `json:"total_amount_minor"`
	DiscountAmountMinor int64               `json:"discount_amount_minor"`
	ShippingAmountMinor int64               `json:"shipping_amount_minor"`
	TaxAmountMinor      int64               `json:"tax_amount_minor"`
	PayAmountMinor      int64               `json:"pay_amount_minor"`
	DiscountCodeID      *int64              `json:"discount_code_id,omitempty"`
	Discounts           []DiscountResponse  `json:"discounts,omitempty"`
	DiscountFailure     *pricing.Failure    `json:"discount_failure,omitempty"`
}

// UploadTicketResponse is a presigned upload
type UploadTicketResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toItemResponses(items []order.Item) []OrderItemResponse {
	out := make([]OrderItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemResponse{
			ID:                  it.ID,
			ProductID:           it.ProductID,
			SkuID:               it.SkuID,
			Title:               it.Title,
			SkuAttrs:            it.SkuAttrs,
			CoverImageURL:       it.CoverImageURL,
			UnitPriceMinor:      it.UnitPrice,
			Quantity:            it.Quantity,
			SubtotalAmountMinor: it.SubtotalAmount,
			DiscountCodeID:      it.DiscountCodeID,
		})
	}
	return out
}

func toDiscountResponses(applied []pricing.Applied) []DiscountResponse {
	if len(applied) == 0 {
		return nil
	}
	out := make([]DiscountResponse, 0, len(applied))
	for _, a := range applied {
		d := DiscountResponse{
			DiscountCodeID:  a.DiscountCodeID,
			Scope:           string(a.Scope),
			SkuID:           a.SkuID,
			Currency:        a.Currency,
			AmountMinor:     a.AmountMinor,
			BaseCurrency:    a.BaseCurrency,
			BaseAmountMinor: a.BaseAmountMinor,
			FxAsOf:          a.FxAsOf,
			FxProvider:      a.FxProvider,
		}
		if a.FxRate != nil {
			d.FxRate = a.FxRate.String()
		}
		out = append(out, d)
	}
	return out
}

func toOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:                  o.ID,
		OrderNo:             o.OrderNo,
		UserID:              o.UserID,
		Status:              string(o.Status),
		Source:              string(o.Source),
		Currency:            o.Currency,
		Items:               toItemResponses(o.Items),
		TotalAmountMinor:    o.TotalAmount,
		DiscountAmountMinor: o.DiscountAmount,
		ShippingAmountMinor: o.ShippingAmount,
		TaxAmountMinor:      o.TaxAmount,
		PayAmountMinor:      o.PayAmount,
		DiscountCodeID:      o.DiscountCodeID,
		Discounts:           toDiscountResponses(o.Discounts),
		Address:             o.Address,
		AddressChanged:      o.AddressChanged,
		ActivePaymentID:     o.ActivePaymentID,
		CancelReason:        o.CancelReason,
		PaidAt:              o.PaidAt,
		CancelledAt:         o.CancelledAt,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	if o.Refund != nil {
		resp.RefundRequest = &RefundReasonResponse{
			ReasonCode:  string(o.Refund.Code),
			ReasonText:  o.Refund.Text,
			Attachments: o.Refund.Attachments,
		}
	}
	return resp
}

func toStatusLogResponses(logs []order.StatusLog) []StatusLogResponse {
	out := make([]StatusLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, StatusLogResponse{
			FromStatus: string(l.FromStatus),
			ToStatus:   string(l.ToStatus),
			Source:     string(l.Source),
			Note:       l.Note,
			At:         l.At,
		})
	}
	return out
}

func toDetailResponse(d *orderapp.Detail) OrderDetailResponse {
	return OrderDetailResponse{
		Order:           toOrderResponse(d.Order),
		StatusLogs:      toStatusLogResponses(d.Logs),
		DiscountFailure: d.DiscountFailure,
	}
}

func toQuoteResponse(q *orderapp.Quote) QuoteResponse {
	return QuoteResponse{
		Currency:            q.Currency,
		CurrencyFallback:    q.CurrencyFallback,
		Items:               toItemResponses(q.Items),
		TotalAmountMinor:    q.TotalAmount,
		DiscountAmountMinor: q.DiscountAmount,
		ShippingAmountMinor: q.ShippingAmount,
		TaxAmountMinor:      q.TaxAmount,
		PayAmountMinor:      q.PayAmount,
		DiscountCodeID:      q.DiscountCodeID,
		Discounts:           toDiscountResponses(q.Discounts),
		DiscountFailure:     q.DiscountFailure,
	}
}
