package handler

import (
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	paymentapp "github.com/intlshop/backend/internal/application/payment"
	"github.com/intlshop/backend/internal/domain/order"
)

// AdminOrderListQuery filters the operator order list
type AdminOrderListQuery struct {
	Status        string     `form:"status" binding:"omitempty,max=32"`
	UserID        int64      `form:"user_id" binding:"omitempty,gt=0"`
	OrderNo       string     `form:"order_no" binding:"omitempty,max=64"`
	CreatedFrom   *time.Time `form:"created_from" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedBefore *time.Time `form:"created_before" time_format:"2006-01-02T15:04:05Z07:00"`
	Page          int        `form:"page" binding:"omitempty,gte=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,gte=1,lte=100"`
}

func (q AdminOrderListQuery) toFilter() order.ListFilter {
	f := order.ListFilter{
		Status:        order.Status(q.Status),
		UserID:        q.UserID,
		OrderNo:       q.OrderNo,
		CreatedFrom:   q.CreatedFrom,
		CreatedBefore: q.CreatedBefore,
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	f.Normalize()
	return f
}

// InventoryLogResponse is one stock movement caused by an order
type InventoryLogResponse struct {
	SkuID      int64     `json:"sku_id"`
	ChangeType string    `json:"change_type"`
	Quantity   int64     `json:"quantity"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// MoneyTotalResponse is a sum in one currency
type MoneyTotalResponse struct {
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
	Count       int64  `json:"count"`
}

// StatsResponse is the operator dashboard overview
type StatsResponse struct {
	OrdersByStatus map[string]int64     `json:"orders_by_status"`
	Paid           []MoneyTotalResponse `json:"paid"`
	Refunded       []MoneyTotalResponse `json:"refunded"`
	PendingRefunds int64                `json:"pending_refunds"`
}

// PaymentDetailResponse is an attempt with its refunds
type PaymentDetailResponse struct {
	Payment PaymentResponse  `json:"payment"`
	Refunds []RefundResponse `json:"refunds"`
}

func toInventoryLogResponses(logs []order.InventoryLog) []InventoryLogResponse {
	out := make([]InventoryLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, InventoryLogResponse{
			SkuID:      l.SkuID,
			ChangeType: string(l.ChangeType),
			Quantity:   l.Quantity,
			Reason:     l.Reason,
			At:         l.At,
		})
	}
	return out
}

func toMoneyTotalResponses(totals []order.MoneyTotal) []MoneyTotalResponse {
	out := make([]MoneyTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, MoneyTotalResponse{Currency: t.Currency, AmountMinor: t.AmountMinor, Count: t.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

func toStatsResponse(s order.Stats) StatsResponse {
	byStatus := make(map[string]int64, len(s.OrdersByStatus))
	for status, n := range s.OrdersByStatus {
		byStatus[string(status)] = n
	}
	return StatsResponse{
		OrdersByStatus: byStatus,
		Paid:           toMoneyTotalResponses(s.Paid),
		Refunded:       toMoneyTotalResponses(s.Refunded),
		PendingRefunds: s.PendingRefunds,
	}
}

func toPaymentDetailResponse(d *paymentapp.PaymentDetail) PaymentDetailResponse {
	refunds := make([]RefundResponse, 0, len(d.Refunds))
	for _, r := range d.Refunds {
		refunds = append(refunds, *toRefundResponse(r))
	}
	return PaymentDetailResponse{Payment: toPaymentResponse(d.Attempt), Refunds: refunds}
}

// List pages through orders matching the query
func (h *AdminOrderHandler) List(c *gin.Context) {
	var q AdminOrderListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	f := q.toFilter()

	orders, total, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	h.SuccessWithMeta(c, out, total, f.Page, f.PageSize)
}

// Get returns any order
func (h *AdminOrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(o))
}

// StatusLogs returns the status audit trail of an order
func (h *AdminOrderHandler) StatusLogs(c *gin.Context) {
	logs, err := h.orders.StatusLogs(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toStatusLogResponses(logs))
}

// InventoryLogs returns the stock movements of an order
func (h *AdminOrderHandler) InventoryLogs(c *gin.Context) {
	logs, err := h.orders.InventoryLogs(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInventoryLogResponses(logs))
}

// DiscountApplications returns the discounts frozen on an order
func (h *AdminOrderHandler) DiscountApplications(c *gin.Context) {
	applied, err := h.orders.DiscountApplications(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := toDiscountResponses(applied)
	if out == nil {
		out = []DiscountResponse{}
	}
	h.Success(c, out)
}

// Stats returns the dashboard overview
func (h *AdminOrderHandler) Stats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toStatsResponse(stats))
}

// PaymentDetail returns an attempt and its refunds
func (h *AdminOrderHandler) PaymentDetail(c *gin.Context) {
	paymentID, ok := h.paramID(c, "paymentId")
	if !ok {
		return
	}

	d, err := h.payments.PaymentDetail(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentDetailResponse(d))
}

// RefundDetail returns one refund with its items
func (h *AdminOrderHandler) RefundDetail(c *gin.Context) {
	refundID, ok := h.paramID(c, "refundId")
	if !ok {
		return
	}

	r, err := h.payments.RefundDetail(c.Request.Context(), refundID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRefundResponse(r))
}
