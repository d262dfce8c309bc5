package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/pricing"
)

// OrderModel is the persistence model of the order aggregate root
type OrderModel struct {
	ID                int64   `gorm:"primaryKey;autoIncrement"`
	OrderNo           string  `gorm:"size:64;not null;uniqueIndex"`
	UserID            int64   `gorm:"not null;index"`
	Status            string  `gorm:"size:32;not null;index:idx_orders_status_created,priority:1"`
	Source            string  `gorm:"size:16;not null"`
	Currency          string  `gorm:"size:3;not null"`
	ItemsCount        int     `gorm:"not null"`
	TotalAmount       int64   `gorm:"not null"`
	DiscountAmount    int64   `gorm:"not null;default:0"`
	ShippingAmount    int64   `gorm:"not null;default:0"`
	TaxAmount         int64   `gorm:"not null;default:0"`
	PayAmount         int64   `gorm:"not null"`
	DiscountCodeID    *int64
	AddressSnapshot   string `gorm:"type:text;not null"`
	AddressChanged    bool   `gorm:"not null;default:false"`
	ActivePaymentID   *int64
	CancelReason      string `gorm:"size:255"`
	RefundReasonCode  string `gorm:"size:32"`
	RefundReasonText  string `gorm:"size:255"`
	RefundAttachments string `gorm:"type:text"`
	PaidAt            *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time `gorm:"not null;index:idx_orders_status_created,priority:2"`
	UpdatedAt         time.Time `gorm:"not null"`

	Items     []OrderItemModel            `gorm:"foreignKey:OrderID"`
	Discounts []OrderDiscountAppliedModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is one immutable order line
type OrderItemModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	OrderID        int64  `gorm:"not null;index"`
	ProductID      int64  `gorm:"not null"`
	SkuID          int64  `gorm:"not null"`
	DiscountCodeID *int64
	Title          string `gorm:"size:255;not null"`
	SkuAttrs       string `gorm:"type:text"`
	CoverImageURL  string `gorm:"size:512"`
	UnitPrice      int64  `gorm:"not null"`
	Quantity       int64  `gorm:"not null"`
	SubtotalAmount int64  `gorm:"not null"`
	CreatedAt      time.Time
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_item"
}

// OrderDiscountAppliedModel records one deducted discount amount
type OrderDiscountAppliedModel struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	OrderID        int64 `gorm:"not null;index"`
	OrderItemID    *int64
	SkuID          *int64
	DiscountCodeID int64            `gorm:"not null"`
	AppliedScope   string           `gorm:"size:16;not null"`
	Currency       string           `gorm:"size:3;not null"`
	AppliedAmount  int64            `gorm:"not null"`
	BaseCurrency   string           `gorm:"size:3;not null"`
	BaseAmount     int64            `gorm:"not null"`
	FxRate         *decimal.Decimal `gorm:"type:decimal(24,10)"`
	FxAsOf         *time.Time
	FxProvider     string `gorm:"size:64"`
	CreatedAt      time.Time
}

// TableName returns the table name for GORM
func (OrderDiscountAppliedModel) TableName() string {
	return "order_discount_applied"
}

// OrderStatusLogModel is one append-only audit entry
type OrderStatusLogModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	OrderID     int64     `gorm:"not null;index"`
	FromStatus  string    `gorm:"size:32"`
	ToStatus    string    `gorm:"size:32;not null"`
	EventSource string    `gorm:"size:32;not null"`
	Note        string    `gorm:"size:255"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderStatusLogModel) TableName() string {
	return "order_status_log"
}

// InventoryLogModel is one stock movement caused by an order
type InventoryLogModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	SkuID      int64     `gorm:"not null;index"`
	OrderID    int64     `gorm:"not null;index"`
	ChangeType string    `gorm:"size:16;not null"`
	Quantity   int64     `gorm:"not null"`
	Reason     string    `gorm:"size:255"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventoryLogModel) TableName() string {
	return "inventory_log"
}

// ToDomain converts the row to a domain inventory log entry
func (m InventoryLogModel) ToDomain() order.InventoryLog {
	return order.InventoryLog{
		ID:         m.ID,
		SkuID:      m.SkuID,
		OrderID:    m.OrderID,
		ChangeType: order.InventoryChange(m.ChangeType),
		Quantity:   m.Quantity,
		Reason:     m.Reason,
		At:         m.CreatedAt,
	}
}

// FromDomain builds the model of a new order
func (m *OrderModel) FromDomain(o *order.Order) error {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return err
	}
	m.ID = o.ID
	m.OrderNo = o.OrderNo
	m.UserID = o.UserID
	m.Status = string(o.Status)
	m.Source = string(o.Source)
	m.Currency = o.Currency
	m.ItemsCount = len(o.Items)
	m.TotalAmount = o.TotalAmount
	m.DiscountAmount = o.DiscountAmount
	m.ShippingAmount = o.ShippingAmount
	m.TaxAmount = o.TaxAmount
	m.PayAmount = o.PayAmount
	m.DiscountCodeID = o.DiscountCodeID
	m.AddressSnapshot = string(addr)
	m.AddressChanged = o.AddressChanged
	m.ActivePaymentID = o.ActivePaymentID
	m.CancelReason = o.CancelReason
	m.PaidAt = o.PaidAt
	m.CancelledAt = o.CancelledAt
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	if o.Refund != nil {
		if err := m.SetRefundRequest(*o.Refund); err != nil {
			return err
		}
	}

	m.Items = make([]OrderItemModel, len(o.Items))
	for i, it := range o.Items {
		m.Items[i] = OrderItemModel{
			ProductID:      it.ProductID,
			SkuID:          it.SkuID,
			DiscountCodeID: it.DiscountCodeID,
			Title:          it.Title,
			SkuAttrs:       it.SkuAttrs,
			CoverImageURL:  it.CoverImageURL,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			SubtotalAmount: it.SubtotalAmount,
			CreatedAt:      o.CreatedAt,
		}
	}
	return nil
}

// SetRefundRequest stores the shopper's refund reason
func (m *OrderModel) SetRefundRequest(r order.RefundRequest) error {
	attachments, err := json.Marshal(r.Attachments)
	if err != nil {
		return err
	}
	m.RefundReasonCode = string(r.Code)
	m.RefundReasonText = r.Text
	m.RefundAttachments = string(attachments)
	return nil
}

// ToDomain converts the model, its items and discount rows to the aggregate
func (m *OrderModel) ToDomain() (*order.Order, error) {
	o := &order.Order{
		ID:              m.ID,
		OrderNo:         m.OrderNo,
		UserID:          m.UserID,
		Status:          order.Status(m.Status),
		Source:          order.Source(m.Source),
		Currency:        m.Currency,
		TotalAmount:     m.TotalAmount,
		DiscountAmount:  m.DiscountAmount,
		ShippingAmount:  m.ShippingAmount,
		TaxAmount:       m.TaxAmount,
		PayAmount:       m.PayAmount,
		DiscountCodeID:  m.DiscountCodeID,
		AddressChanged:  m.AddressChanged,
		ActivePaymentID: m.ActivePaymentID,
		CancelReason:    m.CancelReason,
		PaidAt:          m.PaidAt,
		CancelledAt:     m.CancelledAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.AddressSnapshot != "" {
		if err := json.Unmarshal([]byte(m.AddressSnapshot), &o.Address); err != nil {
			return nil, err
		}
	}
	if m.RefundReasonCode != "" {
		req := order.RefundRequest{Code: order.RefundReasonCode(m.RefundReasonCode), Text: m.RefundReasonText}
		if m.RefundAttachments != "" {
			if err := json.Unmarshal([]byte(m.RefundAttachments), &req.Attachments); err != nil {
				return nil, err
			}
		}
		o.Refund = &req
	}

	o.Items = make([]order.Item, len(m.Items))
	for i, it := range m.Items {
		o.Items[i] = order.Item{
			ID:             it.ID,
			ProductID:      it.ProductID,
			SkuID:          it.SkuID,
			Title:          it.Title,
			SkuAttrs:       it.SkuAttrs,
			CoverImageURL:  it.CoverImageURL,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			SubtotalAmount: it.SubtotalAmount,
			DiscountCodeID: it.DiscountCodeID,
		}
	}
	for _, d := range m.Discounts {
		o.Discounts = append(o.Discounts, d.ToDomain())
	}
	return o, nil
}

// NewDiscountApplied maps an applied discount; itemIDs resolves the line of an ITEM-scope row
func NewDiscountApplied(orderID int64, a pricing.Applied, itemIDs map[int64]int64, at time.Time) OrderDiscountAppliedModel {
	m := OrderDiscountAppliedModel{
		OrderID:        orderID,
		SkuID:          a.SkuID,
		DiscountCodeID: a.DiscountCodeID,
		AppliedScope:   string(a.Scope),
		Currency:       a.Currency,
		AppliedAmount:  a.AmountMinor,
		BaseCurrency:   a.BaseCurrency,
		BaseAmount:     a.BaseAmountMinor,
		FxRate:         a.FxRate,
		FxAsOf:         a.FxAsOf,
		FxProvider:     a.FxProvider,
		CreatedAt:      at,
	}
	if a.SkuID != nil {
		if id, ok := itemIDs[*a.SkuID]; ok {
			m.OrderItemID = &id
		}
	}
	return m
}

// ToDomain converts the row to the engine's accounting record
func (m OrderDiscountAppliedModel) ToDomain() pricing.Applied {
	return pricing.Applied{
		DiscountCodeID:  m.DiscountCodeID,
		Scope:           pricing.ApplyScope(m.AppliedScope),
		SkuID:           m.SkuID,
		Currency:        m.Currency,
		AmountMinor:     m.AppliedAmount,
		BaseCurrency:    m.BaseCurrency,
		BaseAmountMinor: m.BaseAmount,
		FxRate:          m.FxRate,
		FxAsOf:          m.FxAsOf,
		FxProvider:      m.FxProvider,
	}
}

// NewStatusLog maps a domain status log entry
func NewStatusLog(orderID int64, l order.StatusLog) OrderStatusLogModel {
	return OrderStatusLogModel{
		OrderID:     orderID,
		FromStatus:  string(l.FromStatus),
		ToStatus:    string(l.ToStatus),
		EventSource: string(l.Source),
		Note:        l.Note,
		CreatedAt:   l.At,
	}
}

// ToDomain converts the row to a domain status log entry
func (m OrderStatusLogModel) ToDomain() order.StatusLog {
	return order.StatusLog{
		OrderID:    m.OrderID,
		FromStatus: order.Status(m.FromStatus),
		ToStatus:   order.Status(m.ToStatus),
		Source:     order.EventSource(m.EventSource),
		Note:       m.Note,
		At:         m.CreatedAt,
	}
}
