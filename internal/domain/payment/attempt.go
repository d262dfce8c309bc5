package payment

import "time"

// AttemptStatus is the status of one payment attempt
type AttemptStatus string

const (
	AttemptInit      AttemptStatus = "INIT"
	AttemptPending   AttemptStatus = "PENDING"
	AttemptSuccess   AttemptStatus = "SUCCESS"
	AttemptFail      AttemptStatus = "FAIL"
	AttemptException AttemptStatus = "EXCEPTION"
	AttemptClosed    AttemptStatus = "CLOSED"
)

// IsOpen reports whether the attempt can still be captured
func (s AttemptStatus) IsOpen() bool {
	return s == AttemptInit || s == AttemptPending
}

// Channel is the payment provider of an attempt
type Channel string

const ChannelPayPal Channel = "PAYPAL"

// Attempt is one try at collecting the order's pay amount. Superseded attempts
// are kept for audit; at most one is referenced by the order as active.
type Attempt struct {
	ID              int64
	OrderID         int64
	OrderNo         string
	UserID          int64
	Channel         Channel
	ExternalOrderID string
	CaptureID       string
	ApproveURL      string
	Status          AttemptStatus
	AmountMinor     int64
	Currency        string
	LastPolledAt    *time.Time
	NotifyDigest    string
	LastNotifiedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CheckoutKey is the gateway idempotency key for creating the gateway order
func CheckoutKey(paymentID int64) string {
	return "ppco-" + itoa(paymentID)
}

// CaptureKey is the gateway idempotency key for capturing the gateway order
func CaptureKey(paymentID int64) string {
	return "ppcap-" + itoa(paymentID)
}

// AutoRefundKey dedupes the automatic refund of an EXCEPTION capture
func AutoRefundKey(paymentID int64) string {
	return "ppref-" + itoa(paymentID)
}

// ManualRefundKey is the key for the n-th operator refund of an order
func ManualRefundKey(orderNo string, n int64) string {
	return "pprf-" + orderNo + "-" + itoa(n)
}

// WebhookRefundKey names a refund row created from a gateway-initiated event
func WebhookRefundKey(paymentID int64, externalRefundID string) string {
	return "webhook-" + itoa(paymentID) + "-" + externalRefundID
}
