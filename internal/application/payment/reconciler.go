package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
)

const (
	// DefaultPaymentTTL mirrors the order payment window used for late captures
	DefaultPaymentTTL = 30 * time.Minute
	// MaxSyncBatch bounds every batch sync call
	MaxSyncBatch = 200

	fallbackApproveURL = "https://www.paypal.com/checkoutnow?token="
	autoRefundNote     = "automatic refund of a capture the order could not accept"
)

// Webhook handling results
const (
	WebhookProcessed    = "processed"
	WebhookReplayed     = "replayed"
	WebhookIgnored      = "ignored"
	WebhookUnknownOrder = "unknown_order"
)

// Metrics records reconciliation counters
type Metrics interface {
	RecordCapture(ctx context.Context, outcome string)
	RecordRefund(ctx context.Context, status string, initiator string)
	RecordWebhook(ctx context.Context, eventType string, result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCapture(context.Context, string)         {}
func (noopMetrics) RecordRefund(context.Context, string, string)  {}
func (noopMetrics) RecordWebhook(context.Context, string, string) {}

// Config holds the dependencies and tunables of Reconciler
type Config struct {
	Repo       payment.Repository
	Gateway    payment.Gateway
	Currencies pricing.CurrencyConfigProvider
	Shipments  order.Shipments
	Clock      shared.Clock
	Metrics    Metrics
	Logger     *zap.Logger

	PaymentTTL time.Duration
	ReturnURL  string
	CancelURL  string
}

// CheckoutResult is what the shopper needs to approve the payment
type CheckoutResult struct {
	PaymentID       int64
	ExternalOrderID string
	ApproveURL      string
	Status          payment.AttemptStatus
}

// WebhookResult reports how a webhook delivery was handled
type WebhookResult struct {
	EventID   string
	EventType string
	Result    string
}

// SyncReport summarizes a batch sync pass
type SyncReport struct {
	Scanned   int
	Processed int
	Failed    int
}

// Reconciler drives payment attempts and refunds to agree with the gateway.
// Every entry point (return path, webhook, poll) funnels capture observations
// through one transactional decision, so redundant or reordered signals converge.
type Reconciler struct {
	repo       payment.Repository
	gateway    payment.Gateway
	currencies pricing.CurrencyConfigProvider
	shipments  order.Shipments
	clock      shared.Clock
	metrics    Metrics
	logger     *zap.Logger

	paymentTTL time.Duration
	returnURL  string
	cancelURL  string
}

// NewReconciler creates a Reconciler
func NewReconciler(cfg Config) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	ttl := cfg.PaymentTTL
	if ttl <= 0 {
		ttl = DefaultPaymentTTL
	}
	return &Reconciler{
		repo:       cfg.Repo,
		gateway:    cfg.Gateway,
		currencies: cfg.Currencies,
		shipments:  cfg.Shipments,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
		paymentTTL: ttl,
		returnURL:  cfg.ReturnURL,
		cancelURL:  cfg.CancelURL,
	}
}

// CreateCheckout opens (or reuses) the order's attempt and its gateway order
func (r *Reconciler) CreateCheckout(ctx context.Context, userID int64, orderNo string) (*CheckoutResult, error) {
	target, err := r.repo.PrepareCheckout(ctx, userID, orderNo, r.clock.Now())
	if err != nil {
		return nil, err
	}
	a := target.Attempt
	log := r.logger.With(zap.String("order_no", target.OrderNo), zap.Int64("payment_id", a.ID))

	if a.ExternalOrderID != "" {
		return r.existingCheckout(ctx, a, log), nil
	}

	cfg, err := r.currencies.Get(ctx, a.Currency)
	if err != nil {
		return nil, err
	}
	gwOrder, err := r.gateway.CreateOrder(ctx, payment.CreateOrderRequest{
		IdempotencyKey: payment.CheckoutKey(a.ID),
		ReferenceID:    target.OrderNo,
		Currency:       a.Currency,
		Value:          cfg.FormatMajor(a.AmountMinor),
		ReturnURL:      r.returnURL,
		CancelURL:      r.cancelURL,
	})
	if err != nil {
		log.Warn("gateway order create failed", zap.Error(err))
		return nil, err
	}
	if err := r.repo.BindExternalOrder(ctx, a.ID, gwOrder.ID, gwOrder.ApproveURL); err != nil {
		if !shared.IsConflict(err) {
			return nil, err
		}
		// A concurrent checkout bound first; return the winner.
		winner, ferr := r.repo.FindAttempt(ctx, a.ID)
		if ferr != nil {
			return nil, ferr
		}
		log.Info("checkout bind lost race", zap.String("external_order_id", winner.ExternalOrderID))
		return r.existingCheckout(ctx, winner, log), nil
	}
	log.Info("checkout created", zap.String("external_order_id", gwOrder.ID))
	return &CheckoutResult{
		PaymentID:       a.ID,
		ExternalOrderID: gwOrder.ID,
		ApproveURL:      approveURL(gwOrder.ID, gwOrder.ApproveURL),
		Status:          a.Status,
	}, nil
}

func (r *Reconciler) existingCheckout(ctx context.Context, a *payment.Attempt, log *zap.Logger) *CheckoutResult {
	url := a.ApproveURL
	if gw, err := r.gateway.GetOrder(ctx, a.ExternalOrderID); err == nil && gw.ApproveURL != "" {
		url = gw.ApproveURL
	} else if err != nil {
		log.Warn("gateway order lookup failed, using stored approve url", zap.Error(err))
	}
	return &CheckoutResult{
		PaymentID:       a.ID,
		ExternalOrderID: a.ExternalOrderID,
		ApproveURL:      approveURL(a.ExternalOrderID, url),
		Status:          a.Status,
	}
}

func approveURL(externalOrderID, url string) string {
	if url != "" {
		return url
	}
	return fallbackApproveURL + externalOrderID
}

// Capture is the shopper's return path after approving the payment
func (r *Reconciler) Capture(ctx context.Context, userID, paymentID int64) (*payment.Attempt, error) {
	a, err := r.ownedAttempt(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if a.Status == payment.AttemptSuccess {
		return a, nil
	}
	if a.ExternalOrderID == "" {
		return nil, shared.NewConflictError("payment %d has no gateway order yet", a.ID)
	}
	outcome, err := r.captureAtGateway(ctx, a)
	if err != nil {
		return nil, err
	}
	applied, err := r.applyCapture(ctx, a.ID, outcome, "return")
	if err != nil {
		return nil, err
	}
	return applied.Attempt, nil
}

// CancelAttempt closes an open attempt at the shopper's request
func (r *Reconciler) CancelAttempt(ctx context.Context, userID, paymentID int64) (*payment.Attempt, error) {
	a, err := r.ownedAttempt(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	changed, err := r.repo.CloseAttempt(ctx, a.ID, r.clock.Now())
	if err != nil {
		return nil, err
	}
	if changed {
		r.logger.Info("payment attempt closed", zap.Int64("payment_id", a.ID), zap.String("order_no", a.OrderNo))
	}
	return r.repo.FindAttempt(ctx, a.ID)
}

func (r *Reconciler) ownedAttempt(ctx context.Context, userID, paymentID int64) (*payment.Attempt, error) {
	a, err := r.repo.FindAttempt(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, shared.NewNotFoundError("payment %d not found", paymentID)
	}
	return a, nil
}

// captureAtGateway captures an approved order. When the capture call fails the
// order is read back, since an earlier capture may already have gone through.
func (r *Reconciler) captureAtGateway(ctx context.Context, a *payment.Attempt) (payment.CaptureOutcome, error) {
	gw, err := r.gateway.CaptureOrder(ctx, a.ExternalOrderID, payment.CaptureKey(a.ID))
	if err == nil {
		return gw.Outcome(), nil
	}
	r.logger.Warn("gateway capture failed, reading order back",
		zap.Int64("payment_id", a.ID), zap.String("external_order_id", a.ExternalOrderID), zap.Error(err))
	gw, gerr := r.gateway.GetOrder(ctx, a.ExternalOrderID)
	if gerr != nil || gw.Capture == nil {
		return payment.CaptureOutcome{}, err
	}
	return gw.Outcome(), nil
}

// applyCapture runs the transactional decision and its follow-ups
func (r *Reconciler) applyCapture(ctx context.Context, paymentID int64, outcome payment.CaptureOutcome, via string) (payment.CaptureApplied, error) {
	applied, err := r.repo.ApplyCaptureResult(ctx, paymentID, outcome, r.paymentTTL, r.clock.Now())
	if err != nil {
		r.logger.Warn("capture result not applied",
			zap.Int64("payment_id", paymentID), zap.String("via", via),
			zap.String("capture_status", outcome.GatewayStatus), zap.Error(err))
		return applied, err
	}
	dec := applied.Decision
	a := applied.Attempt
	log := r.logger.With(
		zap.Int64("payment_id", a.ID),
		zap.String("order_no", a.OrderNo),
		zap.String("via", via),
		zap.String("capture_status", outcome.GatewayStatus),
		zap.String("outcome", string(dec.AttemptStatus)))
	if dec.Changed {
		r.metrics.RecordCapture(ctx, string(dec.AttemptStatus))
		log.Info("payment attempt settled", zap.String("reason", dec.Reason))
	} else {
		log.Debug("capture observation changed nothing")
	}

	if dec.MarkOrderPaid && r.shipments != nil {
		if err := r.shipments.EnsurePlaceholder(ctx, a.OrderID, a.OrderNo); err != nil {
			log.Warn("shipment placeholder not created", zap.Error(err))
		}
	}
	if dec.AutoRefund {
		if err := r.autoRefund(ctx, a); err != nil {
			log.Warn("automatic refund deferred", zap.Error(err))
		}
	}
	return applied, nil
}

// autoRefund returns the full captured amount of an EXCEPTION attempt. The
// gateway is called first with a deterministic key; the row is written after.
func (r *Reconciler) autoRefund(ctx context.Context, a *payment.Attempt) error {
	key := payment.AutoRefundKey(a.ID)
	exists, err := r.repo.ExistsRefundDedupeKey(ctx, a.ID, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	captureID, err := r.resolveCaptureID(ctx, a)
	if err != nil {
		return err
	}
	cfg, err := r.currencies.Get(ctx, a.Currency)
	if err != nil {
		return err
	}
	gr, err := r.gateway.RefundCapture(ctx, payment.RefundCaptureRequest{
		IdempotencyKey: key,
		CaptureID:      captureID,
		Currency:       a.Currency,
		Value:          cfg.FormatMajor(a.AmountMinor),
		Note:           autoRefundNote,
	})
	if err != nil {
		return err
	}
	now := r.clock.Now()
	row, _, err := r.repo.InsertRefund(ctx, &payment.Refund{
		OrderID:          a.OrderID,
		OrderNo:          a.OrderNo,
		PaymentID:        a.ID,
		ExternalRefundID: gr.ID,
		ClientRefundNo:   key,
		Status:           payment.RefundPending,
		AmountMinor:      a.AmountMinor,
		Currency:         a.Currency,
		ReasonCode:       order.ReasonOther,
		Initiator:        payment.InitiatorSystem,
		Note:             autoRefundNote,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return err
	}
	r.logger.Info("automatic refund issued",
		zap.Int64("payment_id", a.ID), zap.Int64("refund_id", row.ID), zap.String("external_refund_id", gr.ID))
	return r.settleRefund(ctx, row, payment.MapRefundStatus(gr.Status), order.SourceSystem)
}

func (r *Reconciler) resolveCaptureID(ctx context.Context, a *payment.Attempt) (string, error) {
	if a.CaptureID != "" {
		return a.CaptureID, nil
	}
	gw, err := r.gateway.GetOrder(ctx, a.ExternalOrderID)
	if err != nil {
		return "", err
	}
	if gw.Capture == nil || gw.Capture.ID == "" {
		return "", shared.NewConflictError("payment %d has no capture to refund", a.ID)
	}
	return gw.Capture.ID, nil
}

// settleRefund applies a final gateway status to a refund row
func (r *Reconciler) settleRefund(ctx context.Context, row *payment.Refund, status payment.RefundStatus, source order.EventSource) error {
	if !status.IsFinal() {
		return nil
	}
	res, err := r.repo.ApplyRefundResult(ctx, row.ID, status, source, r.clock.Now())
	if err != nil {
		return err
	}
	if res.StatusChanged {
		r.metrics.RecordRefund(ctx, string(status), string(row.Initiator))
	}
	r.logger.Info("refund settled",
		zap.Int64("refund_id", row.ID),
		zap.String("order_no", row.OrderNo),
		zap.String("refund_status", string(status)),
		zap.Bool("order_refunded", res.OrderRefunded))
	return nil
}

// IssueRefund sends an operator-confirmed refund to the gateway, then records it
// and, when the gateway already completed it, refunds the order and restocks.
func (r *Reconciler) IssueRefund(ctx context.Context, o *order.Order, plan order.RefundPlan, note string) (*payment.Refund, error) {
	a, err := r.repo.FindSuccessfulAttempt(ctx, o.ID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewConflictError("order %s has no captured payment", o.OrderNo)
		}
		return nil, err
	}
	captureID, err := r.resolveCaptureID(ctx, a)
	if err != nil {
		return nil, err
	}
	n, err := r.repo.CountRefunds(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	key := payment.ManualRefundKey(o.OrderNo, n+1)
	cfg, err := r.currencies.Get(ctx, o.Currency)
	if err != nil {
		return nil, err
	}
	gr, err := r.gateway.RefundCapture(ctx, payment.RefundCaptureRequest{
		IdempotencyKey: key,
		CaptureID:      captureID,
		Currency:       o.Currency,
		Value:          cfg.FormatMajor(plan.AmountMinor),
		Note:           note,
	})
	if err != nil {
		r.logger.Warn("gateway refund failed", zap.String("order_no", o.OrderNo), zap.String("client_refund_no", key), zap.Error(err))
		return nil, err
	}

	now := r.clock.Now()
	reason := order.ReasonOther
	if o.Refund != nil {
		reason = o.Refund.Code
	}
	items := make([]payment.RefundItem, len(plan.Items))
	for i, it := range plan.Items {
		items[i] = payment.RefundItem{
			OrderItemID: it.OrderItemID, SkuID: it.SkuID, Quantity: it.Quantity, AmountMinor: it.AmountMinor, Reason: it.Reason,
		}
	}
	status := payment.MapRefundStatus(gr.Status)
	saved, err := r.repo.ConfirmRefundAndRestock(ctx, payment.ConfirmedRefund{
		Order: o,
		Refund: &payment.Refund{
			OrderID:             o.ID,
			OrderNo:             o.OrderNo,
			PaymentID:           a.ID,
			ExternalRefundID:    gr.ID,
			ClientRefundNo:      key,
			Status:              status,
			AmountMinor:         plan.AmountMinor,
			ItemsAmountMinor:    plan.ItemsAmountMinor,
			ShippingAmountMinor: plan.ShippingAmountMinor,
			Currency:            o.Currency,
			ReasonCode:          reason,
			Initiator:           payment.InitiatorAdmin,
			Note:                note,
			Items:               items,
			CreatedAt:           now,
			UpdatedAt:           now,
		},
		Restock: plan.RestockQuantities(o),
		Note:    note,
	}, now)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRefund(ctx, string(saved.Status), string(payment.InitiatorAdmin))
	return saved, nil
}

// SyncPayment polls the gateway for one attempt
func (r *Reconciler) SyncPayment(ctx context.Context, paymentID int64) (*payment.Attempt, error) {
	a, err := r.repo.FindAttempt(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if a.ExternalOrderID == "" {
		return a, nil
	}
	gw, err := r.gateway.GetOrder(ctx, a.ExternalOrderID)
	if err != nil {
		return nil, err
	}
	outcome := gw.Outcome()
	if gw.Capture == nil && gw.Status == "APPROVED" && a.Status.IsOpen() {
		if outcome, err = r.captureAtGateway(ctx, a); err != nil {
			return nil, err
		}
	}
	if err := r.repo.MarkPolled(ctx, a.ID, outcome.CaptureID, r.clock.Now()); err != nil {
		return nil, err
	}
	applied, err := r.applyCapture(ctx, a.ID, outcome, "poll")
	if err != nil {
		return nil, err
	}
	return applied.Attempt, nil
}

// SyncNonFinalPayments polls open attempts. Per-attempt failures are logged and counted.
func (r *Reconciler) SyncNonFinalPayments(ctx context.Context, limit int) (SyncReport, error) {
	ids, err := r.repo.ListSyncCandidates(ctx, clampLimit(limit))
	if err != nil {
		return SyncReport{}, fmt.Errorf("list sync candidates: %w", err)
	}
	report := SyncReport{Scanned: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := r.SyncPayment(ctx, id); err != nil {
			report.Failed++
			r.logger.Warn("payment sync failed", zap.Int64("payment_id", id), zap.Error(err))
			continue
		}
		report.Processed++
	}
	return report, nil
}

// SyncNonFinalRefunds polls refunds that are still waiting on the gateway and
// finishes successful refunds whose order has not moved yet
func (r *Reconciler) SyncNonFinalRefunds(ctx context.Context, limit int) (SyncReport, error) {
	rows, err := r.repo.ListNonFinalRefunds(ctx, clampLimit(limit))
	if err != nil {
		return SyncReport{}, fmt.Errorf("list non-final refunds: %w", err)
	}
	report := SyncReport{Scanned: len(rows)}
	for _, row := range rows {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := r.syncRefund(ctx, row); err != nil {
			report.Failed++
			r.logger.Warn("refund sync failed", zap.Int64("refund_id", row.ID), zap.Error(err))
			continue
		}
		report.Processed++
	}
	return report, nil
}

func (r *Reconciler) syncRefund(ctx context.Context, row *payment.Refund) error {
	if row.Status == payment.RefundSuccess {
		return r.settleRefund(ctx, row, payment.RefundSuccess, order.SourceScheduler)
	}
	if row.ExternalRefundID == "" {
		return shared.NewConflictError("refund %d has no gateway id", row.ID)
	}
	gr, err := r.gateway.GetRefund(ctx, row.ExternalRefundID)
	if err != nil {
		return err
	}
	return r.settleRefund(ctx, row, payment.MapRefundStatus(gr.Status), order.SourceScheduler)
}

// CompensateShipments creates missing placeholder shipments for paid orders
func (r *Reconciler) CompensateShipments(ctx context.Context, limit int) (SyncReport, error) {
	if r.shipments == nil {
		return SyncReport{}, nil
	}
	refs, err := r.shipments.ListPaidWithoutShipment(ctx, clampLimit(limit))
	if err != nil {
		return SyncReport{}, err
	}
	report := SyncReport{Scanned: len(refs)}
	for _, ref := range refs {
		if err := r.shipments.EnsurePlaceholder(ctx, ref.OrderID, ref.OrderNo); err != nil {
			report.Failed++
			r.logger.Warn("shipment compensation failed", zap.String("order_no", ref.OrderNo), zap.Error(err))
			continue
		}
		report.Processed++
	}
	return report, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	return min(limit, MaxSyncBatch)
}
