package payment

import (
	"context"
	"strings"
	"time"
)

// GatewayOrder is the gateway's view of a checkout order
type GatewayOrder struct {
	ID         string
	Status     string
	ApproveURL string
	Capture    *GatewayCapture
}

// GatewayCapture is the first capture of a gateway order
type GatewayCapture struct {
	ID         string
	Status     string
	CreateTime *time.Time
}

// Outcome normalizes the order's capture state
func (o GatewayOrder) Outcome() CaptureOutcome {
	out := CaptureOutcome{ExternalOrderID: o.ID, Kind: OutcomePending, GatewayStatus: o.Status}
	if strings.EqualFold(o.Status, "VOIDED") {
		out.Kind = OutcomeFailed
	}
	if o.Capture != nil {
		out.Kind = MapCaptureStatus(o.Capture.Status)
		out.GatewayStatus = o.Capture.Status
		out.CaptureID = o.Capture.ID
		out.CaptureTime = o.Capture.CreateTime
	}
	return out
}

// CreateOrderRequest asks the gateway for a checkout order
type CreateOrderRequest struct {
	IdempotencyKey string
	ReferenceID    string
	Currency       string
	// Value is the major-unit amount string, e.g. "12.50"
	Value     string
	ReturnURL string
	CancelURL string
}

// RefundCaptureRequest asks the gateway to refund a capture
type RefundCaptureRequest struct {
	IdempotencyKey string
	CaptureID      string
	Currency       string
	Value          string
	Note           string
}

// GatewayRefund is the gateway's view of a refund
type GatewayRefund struct {
	ID     string
	Status string
}

// WebhookEvent is a verified gateway notification, normalized
type WebhookEvent struct {
	ID           string
	EventType    string
	ResourceType string
	CreateTime   *time.Time

	// Capture fields, set for PAYMENT.CAPTURE.* events
	CaptureID     string
	CaptureStatus string

	// Refund fields, set for refund events
	RefundID       string
	RefundStatus   string
	RefundValue    string
	RefundCurrency string

	// Resource is the raw JSON of the event resource
	Resource []byte

	// Payload is the canonical (RFC 8785) JSON of the whole event and Digest its
	// hex SHA-256, so reordered deliveries of one event compare equal
	Payload []byte
	Digest  string
}

// Notification is the last webhook recorded against an attempt
type Notification struct {
	EventID   string
	EventType string
	Payload   []byte
	Digest    string
	At        time.Time
}

// Webhook event types handled by the reconciler
const (
	EventCheckoutOrderApproved = "CHECKOUT.ORDER.APPROVED"
	EventCaptureCompleted      = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDeclined       = "PAYMENT.CAPTURE.DECLINED"
	EventCaptureDenied         = "PAYMENT.CAPTURE.DENIED"
	EventCapturePending        = "PAYMENT.CAPTURE.PENDING"
	EventCaptureRefunded       = "PAYMENT.CAPTURE.REFUNDED"
	EventCaptureReversed       = "PAYMENT.CAPTURE.REVERSED"
)

// Gateway is the payment gateway port. Mutating calls carry an idempotency key
// generated by the reconciler.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (GatewayOrder, error)
	GetOrder(ctx context.Context, externalOrderID string) (GatewayOrder, error)
	CaptureOrder(ctx context.Context, externalOrderID, idempotencyKey string) (GatewayOrder, error)
	RefundCapture(ctx context.Context, req RefundCaptureRequest) (GatewayRefund, error)
	GetRefund(ctx context.Context, externalRefundID string) (GatewayRefund, error)

	// VerifyWebhookAndReplayProtection checks signature headers with the gateway and
	// records the event id. fresh is false for a replayed event.
	VerifyWebhookAndReplayProtection(ctx context.Context, headers map[string]string, body []byte) (event WebhookEvent, fresh bool, err error)

	// TryExtractOrderID finds the gateway order id an event refers to
	TryExtractOrderID(event WebhookEvent) (string, bool)

	// ReleaseWebhookEvent forgets a recorded event id so a redelivery is processed again
	ReleaseWebhookEvent(ctx context.Context, eventID string) error
}
