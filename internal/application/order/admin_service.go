package order

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
)

// PaymentReader is the payment read side needed to confirm refunds
type PaymentReader interface {
	FindSuccessfulAttempt(ctx context.Context, orderID int64) (*payment.Attempt, error)
	FindOpenRefund(ctx context.Context, orderID int64) (*payment.Refund, error)
}

// RefundIssuer sends a planned refund to the gateway and records it
type RefundIssuer interface {
	IssueRefund(ctx context.Context, o *order.Order, plan order.RefundPlan, note string) (*payment.Refund, error)
}

// AdminConfig holds the dependencies of AdminService
type AdminConfig struct {
	Orders     order.Repository
	Reader     order.AdminReader
	Payments   PaymentReader
	Refunds    RefundIssuer
	Currencies pricing.CurrencyConfigProvider
	Claims     order.AddressChangeClaim
	Clock      shared.Clock
	Logger     *zap.Logger
}

// RefundConfirmation is the order after a confirm call and the refund it refers to
type RefundConfirmation struct {
	Order  *order.Order
	Refund *payment.Refund
}

// AdminService implements operator order actions
type AdminService struct {
	orders     order.Repository
	reader     order.AdminReader
	payments   PaymentReader
	refunds    RefundIssuer
	currencies pricing.CurrencyConfigProvider
	claims     order.AddressChangeClaim
	clock      shared.Clock
	logger     *zap.Logger
}

// NewAdminService creates an AdminService
func NewAdminService(cfg AdminConfig) *AdminService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &AdminService{
		orders:     cfg.Orders,
		reader:     cfg.Reader,
		payments:   cfg.Payments,
		refunds:    cfg.Refunds,
		currencies: cfg.Currencies,
		claims:     cfg.Claims,
		clock:      clock,
		logger:     logger,
	}
}

// Cancel cancels an unpaid order on behalf of an operator
func (s *AdminService) Cancel(ctx context.Context, orderNo, reason string) (*order.Order, error) {
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by operator"
	}
	log, err := o.Cancel(order.SourceAdmin, reason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.CancelAndReleaseStock(ctx, o, log); err != nil {
		return nil, err
	}
	releaseAddressClaim(ctx, s.claims, s.logger, o.OrderNo)
	s.logger.Info("order cancelled by operator", zap.String("order_no", o.OrderNo), zap.String("reason", log.Note))
	return o, nil
}

// Close closes an order for operational reasons
func (s *AdminService) Close(ctx context.Context, orderNo, note string) (*order.Order, error) {
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(note) == "" {
		note = "closed by operator"
	}
	from := o.Status
	log, err := o.Close(order.SourceAdmin, note, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.CloseOrder(ctx, o, log); err != nil {
		return nil, err
	}
	releaseAddressClaim(ctx, s.claims, s.logger, o.OrderNo)
	s.logger.Info("order closed", zap.String("order_no", o.OrderNo), zap.String("from_status", string(from)))
	return o, nil
}

// ConfirmRefund issues the refund an operator approved. A refund already in
// flight, or an order already refunded, is returned unchanged.
func (s *AdminService) ConfirmRefund(ctx context.Context, orderNo string, cmd order.ConfirmRefundCommand) (*RefundConfirmation, error) {
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	open, err := s.payments.FindOpenRefund(ctx, o.ID)
	switch {
	case err == nil:
		s.logger.Info("refund already in flight", zap.String("order_no", o.OrderNo), zap.Int64("refund_id", open.ID))
		return &RefundConfirmation{Order: o, Refund: open}, nil
	case !shared.IsNotFound(err):
		return nil, err
	}
	if o.Status == order.StatusRefunded {
		return &RefundConfirmation{Order: o}, nil
	}

	attempt, err := s.payments.FindSuccessfulAttempt(ctx, o.ID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewConflictError("order %s has no captured payment", o.OrderNo)
		}
		return nil, err
	}
	cfg, err := s.currencies.Get(ctx, o.Currency)
	if err != nil {
		return nil, err
	}
	plan, err := o.PlanRefund(cmd, cfg, attempt.AmountMinor)
	if err != nil {
		return nil, err
	}
	note := order.TruncateNote(cmd.Note)
	if note == "" {
		note = "refund confirmed"
	}

	r, err := s.refunds.IssueRefund(ctx, o, plan, note)
	if err != nil {
		s.logger.Warn("refund issue failed", zap.String("order_no", o.OrderNo), zap.Int64("amount", plan.AmountMinor), zap.Error(err))
		return nil, err
	}
	s.logger.Info("refund confirmed",
		zap.String("order_no", o.OrderNo),
		zap.Int64("refund_id", r.ID),
		zap.String("refund_status", string(r.Status)),
		zap.Int64("amount", plan.AmountMinor),
		zap.Bool("full", plan.Full))
	releaseAddressClaim(ctx, s.claims, s.logger, o.OrderNo)

	updated, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return &RefundConfirmation{Order: updated, Refund: r}, nil
}
