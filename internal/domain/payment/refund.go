package payment

import (
	"strings"
	"time"

	"github.com/intlshop/backend/internal/domain/order"
)

// RefundStatus is the status of a refund
type RefundStatus string

const (
	RefundInit    RefundStatus = "INIT"
	RefundPending RefundStatus = "PENDING"
	RefundSuccess RefundStatus = "SUCCESS"
	RefundFail    RefundStatus = "FAIL"
)

// IsFinal reports whether the refund can no longer change
func (s RefundStatus) IsFinal() bool {
	return s == RefundSuccess || s == RefundFail
}

// MapRefundStatus normalizes a gateway refund status
func MapRefundStatus(status string) RefundStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED", "SUCCESS":
		return RefundSuccess
	case "", "PENDING", "UNKNOWN":
		return RefundPending
	default:
		return RefundFail
	}
}

// Initiator records who started a refund
type Initiator string

const (
	InitiatorUser   Initiator = "USER"
	InitiatorAdmin  Initiator = "ADMIN"
	InitiatorSystem Initiator = "SYSTEM"
)

// RefundItem is one refunded line
type RefundItem struct {
	OrderItemID int64
	SkuID       int64
	Quantity    int64
	AmountMinor int64
	Reason      string
}

// Refund is a refund against a captured payment attempt
type Refund struct {
	ID                  int64
	RefundNo            string
	OrderID             int64
	OrderNo             string
	PaymentID           int64
	ExternalRefundID    string
	ClientRefundNo      string
	Status              RefundStatus
	AmountMinor         int64
	ItemsAmountMinor    int64
	ShippingAmountMinor int64
	Currency            string
	ReasonCode          order.RefundReasonCode
	Initiator           Initiator
	Note                string
	Items               []RefundItem
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RefundApplied reports what applying a refund result changed
type RefundApplied struct {
	Refund        *Refund
	StatusChanged bool
	OrderRefunded bool
}
