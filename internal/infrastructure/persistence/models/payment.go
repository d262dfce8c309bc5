package models

import (
	"time"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
)

// PaymentOrderModel is one payment attempt. The order number and owner are
// copied from the order when the attempt is opened.
type PaymentOrderModel struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	OrderID      int64   `gorm:"not null;index"`
	OrderNo      string  `gorm:"size:64;not null"`
	UserID       int64   `gorm:"not null"`
	Channel      string  `gorm:"size:16;not null"`
	ExternalID   *string `gorm:"size:64;uniqueIndex"`
	CaptureID    *string `gorm:"size:64"`
	ApproveURL   string  `gorm:"size:512"`
	Amount       int64   `gorm:"not null"`
	Currency     string  `gorm:"size:3;not null"`
	Status       string  `gorm:"size:16;not null;index"`
	LastPolledAt *time.Time
	// last webhook seen for the attempt, canonical JSON and its SHA-256
	NotifyEventID  *string `gorm:"size:64"`
	NotifyPayload  *string `gorm:"type:text"`
	NotifyDigest   *string `gorm:"size:64"`
	LastNotifiedAt *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentOrderModel) TableName() string {
	return "payment_order"
}

// ToDomain converts the row to a payment attempt
func (m *PaymentOrderModel) ToDomain() *payment.Attempt {
	return &payment.Attempt{
		ID:              m.ID,
		OrderID:         m.OrderID,
		OrderNo:         m.OrderNo,
		UserID:          m.UserID,
		Channel:         payment.Channel(m.Channel),
		ExternalOrderID: deref(m.ExternalID),
		CaptureID:       deref(m.CaptureID),
		ApproveURL:      m.ApproveURL,
		Status:          payment.AttemptStatus(m.Status),
		AmountMinor:     m.Amount,
		Currency:        m.Currency,
		LastPolledAt:    m.LastPolledAt,
		NotifyDigest:    deref(m.NotifyDigest),
		LastNotifiedAt:  m.LastNotifiedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// PaymentRefundModel is one refund against a captured attempt.
// (payment_order_id, client_refund_no) and (payment_order_id, external_refund_id) are unique.
type PaymentRefundModel struct {
	ID               int64   `gorm:"primaryKey;autoIncrement"`
	RefundNo         string  `gorm:"size:64;not null;uniqueIndex"`
	OrderID          int64   `gorm:"not null;index"`
	OrderNo          string  `gorm:"size:64;not null"`
	PaymentOrderID   int64   `gorm:"not null;uniqueIndex:uk_refund_client_no,priority:1;uniqueIndex:uk_refund_external_id,priority:1"`
	ExternalRefundID *string `gorm:"size:64;uniqueIndex:uk_refund_external_id,priority:2"`
	ClientRefundNo   string  `gorm:"size:96;not null;uniqueIndex:uk_refund_client_no,priority:2"`
	Amount           int64   `gorm:"not null"`
	Currency         string  `gorm:"size:3;not null"`
	ItemsAmount      int64   `gorm:"not null;default:0"`
	ShippingAmount   int64   `gorm:"not null;default:0"`
	Status           string  `gorm:"size:16;not null;index"`
	ReasonCode       string  `gorm:"size:32"`
	ReasonText       string  `gorm:"size:255"`
	Initiator        string  `gorm:"size:16;not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`

	Items []PaymentRefundItemModel `gorm:"foreignKey:RefundID"`
}

// TableName returns the table name for GORM
func (PaymentRefundModel) TableName() string {
	return "payment_refund"
}

// PaymentRefundItemModel is one refunded order line
type PaymentRefundItemModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RefundID    int64  `gorm:"not null;index"`
	OrderID     int64  `gorm:"not null"`
	OrderItemID int64  `gorm:"not null"`
	SkuID       int64  `gorm:"not null"`
	Quantity    int64  `gorm:"not null"`
	Amount      int64  `gorm:"not null"`
	Reason      string `gorm:"size:255"`
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (PaymentRefundItemModel) TableName() string {
	return "payment_refund_item"
}

// FromDomain builds the model of a new refund
func (m *PaymentRefundModel) FromDomain(r *payment.Refund) {
	m.ID = r.ID
	m.RefundNo = r.RefundNo
	m.OrderID = r.OrderID
	m.OrderNo = r.OrderNo
	m.PaymentOrderID = r.PaymentID
	m.ExternalRefundID = ptr(r.ExternalRefundID)
	m.ClientRefundNo = r.ClientRefundNo
	m.Amount = r.AmountMinor
	m.Currency = r.Currency
	m.ItemsAmount = r.ItemsAmountMinor
	m.ShippingAmount = r.ShippingAmountMinor
	m.Status = string(r.Status)
	m.ReasonCode = string(r.ReasonCode)
	m.ReasonText = order.TruncateNote(r.Note)
	m.Initiator = string(r.Initiator)
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
	m.Items = make([]PaymentRefundItemModel, len(r.Items))
	for i, it := range r.Items {
		m.Items[i] = PaymentRefundItemModel{
			OrderID:     r.OrderID,
			OrderItemID: it.OrderItemID,
			SkuID:       it.SkuID,
			Quantity:    it.Quantity,
			Amount:      it.AmountMinor,
			Reason:      order.TruncateNote(it.Reason),
			CreatedAt:   r.CreatedAt,
		}
	}
}

// ToDomain converts the row and its items to a refund
func (m *PaymentRefundModel) ToDomain() *payment.Refund {
	r := &payment.Refund{
		ID:                  m.ID,
		RefundNo:            m.RefundNo,
		OrderID:             m.OrderID,
		OrderNo:             m.OrderNo,
		PaymentID:           m.PaymentOrderID,
		ExternalRefundID:    deref(m.ExternalRefundID),
		ClientRefundNo:      m.ClientRefundNo,
		Status:              payment.RefundStatus(m.Status),
		AmountMinor:         m.Amount,
		ItemsAmountMinor:    m.ItemsAmount,
		ShippingAmountMinor: m.ShippingAmount,
		Currency:            m.Currency,
		ReasonCode:          order.RefundReasonCode(m.ReasonCode),
		Initiator:           payment.Initiator(m.Initiator),
		Note:                m.ReasonText,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	for _, it := range m.Items {
		r.Items = append(r.Items, payment.RefundItem{
			OrderItemID: it.OrderItemID,
			SkuID:       it.SkuID,
			Quantity:    it.Quantity,
			AmountMinor: it.Amount,
			Reason:      it.Reason,
		})
	}
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ptr maps "" to NULL so optional unique columns accept many empty rows
func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
