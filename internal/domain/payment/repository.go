package payment

import (
	"context"
	"time"

	"github.com/intlshop/backend/internal/domain/order"
)

// CheckoutTarget is the attempt to check out plus the order it pays for
type CheckoutTarget struct {
	Attempt  *Attempt
	OrderNo  string
	Currency string
}

// CaptureApplied is the outcome of one capture application transaction
type CaptureApplied struct {
	Decision Decision
	Attempt  *Attempt
}

// ConfirmedRefund is an operator refund already accepted by the gateway
type ConfirmedRefund struct {
	Order  *order.Order
	Refund *Refund
	// Restock maps sku id to quantity returned to stock when the refund succeeds
	Restock map[int64]int64
	Note    string
}

// Repository persists attempts and refunds. Every mutating method is one transaction.
type Repository interface {
	// PrepareCheckout reuses the order's open attempt or opens a new INIT one,
	// closes superseded attempts and marks the result active. The order must be PENDING_PAYMENT.
	PrepareCheckout(ctx context.Context, userID int64, orderNo string, now time.Time) (CheckoutTarget, error)

	// BindExternalOrder stores the gateway order id once; a different id is a CONFLICT
	BindExternalOrder(ctx context.Context, paymentID int64, externalOrderID, approveURL string) error

	FindAttempt(ctx context.Context, paymentID int64) (*Attempt, error)
	FindAttemptByExternalOrderID(ctx context.Context, externalOrderID string) (*Attempt, error)
	FindSuccessfulAttempt(ctx context.Context, orderID int64) (*Attempt, error)

	// ApplyCaptureResult loads the attempt and its order, runs DecideCapture and
	// persists the decision (attempt status, PAID transition, stock commit, status log).
	ApplyCaptureResult(ctx context.Context, paymentID int64, outcome CaptureOutcome, paymentTTL time.Duration, now time.Time) (CaptureApplied, error)

	// CloseAttempt moves an open attempt to CLOSED. CLOSED is a no-op; SUCCESS is a CONFLICT.
	CloseAttempt(ctx context.Context, paymentID int64, now time.Time) (bool, error)

	// MarkPolled records a poll and fills the capture id when it is still empty
	MarkPolled(ctx context.Context, paymentID int64, captureID string, now time.Time) error

	// RecordNotification stores the canonical payload and digest of the latest webhook
	RecordNotification(ctx context.Context, paymentID int64, n Notification) error

	// ListSyncCandidates returns open attempts that already have a gateway order and
	// EXCEPTION attempts whose automatic refund has not been recorded yet
	ListSyncCandidates(ctx context.Context, limit int) ([]int64, error)

	FindOpenRefund(ctx context.Context, orderID int64) (*Refund, error)
	CountRefunds(ctx context.Context, orderID int64) (int64, error)
	FindRefund(ctx context.Context, refundID int64) (*Refund, error)
	ListRefundsByPayment(ctx context.Context, paymentID int64) ([]*Refund, error)
	FindRefundByExternalID(ctx context.Context, paymentID int64, externalRefundID string) (*Refund, error)
	FindPendingRefundWithoutExternalID(ctx context.Context, paymentID int64) (*Refund, error)
	ExistsRefundDedupeKey(ctx context.Context, paymentID int64, clientRefundNo string) (bool, error)

	// InsertRefund inserts r; when its client refund number or external id already
	// exists the existing row is returned with created=false
	InsertRefund(ctx context.Context, r *Refund) (existing *Refund, created bool, err error)

	// BindRefundExternalID fills the gateway refund id of a local row
	BindRefundExternalID(ctx context.Context, refundID int64, externalRefundID string) error

	// ConfirmRefundAndRestock persists an operator refund (merging a row a webhook
	// may have created first) and, when it already succeeded, refunds the order and restocks.
	ConfirmRefundAndRestock(ctx context.Context, c ConfirmedRefund, now time.Time) (*Refund, error)

	// ApplyRefundResult moves a non-final refund to status. On SUCCESS for an order in
	// REFUND_REQUESTED it also marks the order REFUNDED and restocks.
	ApplyRefundResult(ctx context.Context, refundID int64, status RefundStatus, source order.EventSource, now time.Time) (RefundApplied, error)

	// ListNonFinalRefunds returns refunds still waiting on the gateway and successful
	// refunds whose order has not been marked refunded yet
	ListNonFinalRefunds(ctx context.Context, limit int) ([]*Refund, error)
}
