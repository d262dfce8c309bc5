package payment

import (
	"context"

	"github.com/intlshop/backend/internal/domain/payment"
)

// PaymentDetail is an attempt with every refund issued against it
type PaymentDetail struct {
	Attempt *payment.Attempt
	Refunds []*payment.Refund
}

// PaymentDetail loads an attempt for the operator console
func (r *Reconciler) PaymentDetail(ctx context.Context, paymentID int64) (*PaymentDetail, error) {
	a, err := r.repo.FindAttempt(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	refunds, err := r.repo.ListRefundsByPayment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return &PaymentDetail{Attempt: a, Refunds: refunds}, nil
}

// RefundDetail loads one refund with its items
func (r *Reconciler) RefundDetail(ctx context.Context, refundID int64) (*payment.Refund, error) {
	return r.repo.FindRefund(ctx, refundID)
}
