package payment

import (
	"strconv"
	"strings"
	"time"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/shared"
)

// OutcomeKind is the normalized meaning of a gateway capture status
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "SUCCESS"
	OutcomePending       OutcomeKind = "PENDING"
	OutcomeFailed        OutcomeKind = "FAILED"
	OutcomeDeferToRefund OutcomeKind = "DEFER_TO_REFUND"
)

// MapCaptureStatus normalizes a gateway capture status
func MapCaptureStatus(status string) OutcomeKind {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED":
		return OutcomeSuccess
	case "DECLINED", "DENIED", "VOIDED", "FAILED":
		return OutcomeFailed
	case "REFUNDED", "PARTIALLY_REFUNDED":
		return OutcomeDeferToRefund
	default:
		return OutcomePending
	}
}

// CaptureOutcome is what the gateway reported for an attempt, from any trigger
type CaptureOutcome struct {
	Kind            OutcomeKind
	GatewayStatus   string
	ExternalOrderID string
	CaptureID       string
	CaptureTime     *time.Time
}

// CaptureState is the persisted state the outcome is applied to
type CaptureState struct {
	AttemptStatus   AttemptStatus
	AttemptActive   bool
	ExternalOrderID string
	OrderStatus     order.Status
	OrderCreatedAt  time.Time
}

// Decision is the result of applying an outcome: the new attempt status plus side effects
type Decision struct {
	AttemptStatus AttemptStatus
	// Changed is false when nothing needs to be written
	Changed bool
	// MarkOrderPaid moves the order to PAID and commits its stock reservation
	MarkOrderPaid bool
	// AutoRefund refunds the full captured amount
	AutoRefund bool
	Reason     string
}

// DecideCapture applies outcome to state. It is pure and idempotent: applying the
// same terminal outcome to the resulting state yields no further change.
// A success captured after order.createdAt + paymentTTL is treated as late.
func DecideCapture(state CaptureState, outcome CaptureOutcome, paymentTTL time.Duration) (Decision, error) {
	if outcome.ExternalOrderID != "" && state.ExternalOrderID != "" && outcome.ExternalOrderID != state.ExternalOrderID {
		return Decision{}, shared.NewConflictError("gateway order %s does not belong to attempt bound to %s", outcome.ExternalOrderID, state.ExternalOrderID)
	}
	keep := Decision{AttemptStatus: state.AttemptStatus}

	switch outcome.Kind {
	case OutcomePending, OutcomeDeferToRefund:
		if state.AttemptStatus == AttemptInit {
			return Decision{AttemptStatus: AttemptPending, Changed: true, Reason: "awaiting gateway settlement"}, nil
		}
		keep.Reason = "no change while pending"
		return keep, nil

	case OutcomeFailed:
		if state.AttemptStatus.IsOpen() {
			return Decision{AttemptStatus: AttemptFail, Changed: true, Reason: "gateway declined capture"}, nil
		}
		keep.Reason = "attempt already settled"
		return keep, nil
	}

	// success
	switch {
	case state.AttemptStatus == AttemptSuccess:
		keep.Reason = "capture already applied"
		return keep, nil
	case state.AttemptStatus == AttemptException:
		keep.AutoRefund = true
		keep.Reason = "exception capture observed again"
		return keep, nil
	case state.OrderStatus == order.StatusRefunded:
		keep.Reason = "order already refunded"
		return keep, nil
	}

	late := paymentTTL > 0 && outcome.CaptureTime != nil && outcome.CaptureTime.After(state.OrderCreatedAt.Add(paymentTTL))
	if state.AttemptActive && state.OrderStatus == order.StatusPendingPayment && state.AttemptStatus.IsOpen() && !late {
		return Decision{AttemptStatus: AttemptSuccess, Changed: true, MarkOrderPaid: true, Reason: "captured"}, nil
	}

	reason := "order no longer accepts this attempt"
	if late {
		reason = "capture arrived after payment window"
	}
	return Decision{AttemptStatus: AttemptException, Changed: true, AutoRefund: true, Reason: reason}, nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
