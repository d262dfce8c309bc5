package payment

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared"
)

// HandleWebhook verifies a gateway notification and applies it. Replayed,
// unrelated and unknown-order events are acknowledged without side effects.
// When applying a fresh event fails its replay marker is released so the
// gateway's redelivery is processed.
func (r *Reconciler) HandleWebhook(ctx context.Context, headers map[string]string, body []byte) (_ *WebhookResult, err error) {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToUpper(k)] = v
	}
	event, fresh, err := r.gateway.VerifyWebhookAndReplayProtection(ctx, normalized, body)
	if err != nil {
		r.metrics.RecordWebhook(ctx, "", "rejected")
		r.logger.Warn("webhook rejected", zap.Error(err))
		return nil, err
	}
	res := &WebhookResult{EventID: event.ID, EventType: event.EventType}
	log := r.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.EventType))

	finish := func(result string) (*WebhookResult, error) {
		res.Result = result
		r.metrics.RecordWebhook(ctx, event.EventType, result)
		log.Info("webhook handled", zap.String("result", result))
		return res, nil
	}

	if !fresh {
		return finish(WebhookReplayed)
	}
	defer func() {
		if err == nil {
			return
		}
		r.metrics.RecordWebhook(ctx, event.EventType, "failed")
		if rerr := r.gateway.ReleaseWebhookEvent(ctx, event.ID); rerr != nil {
			log.Warn("webhook replay marker release failed", zap.Error(rerr))
		}
	}()
	extID, ok := r.gateway.TryExtractOrderID(event)
	if !ok {
		return finish(WebhookIgnored)
	}
	a, err := r.repo.FindAttemptByExternalOrderID(ctx, extID)
	if err != nil {
		if shared.IsNotFound(err) {
			log.Warn("webhook for unknown gateway order", zap.String("external_order_id", extID))
			return finish(WebhookUnknownOrder)
		}
		return nil, err
	}
	log = log.With(zap.Int64("payment_id", a.ID), zap.String("order_no", a.OrderNo))
	if err := r.repo.RecordNotification(ctx, a.ID, payment.Notification{
		EventID:   event.ID,
		EventType: event.EventType,
		Payload:   event.Payload,
		Digest:    event.Digest,
		At:        r.clock.Now(),
	}); err != nil {
		return nil, err
	}

	switch event.EventType {
	case payment.EventCheckoutOrderApproved:
		if !a.Status.IsOpen() {
			return finish(WebhookProcessed)
		}
		outcome, err := r.captureAtGateway(ctx, a)
		if err != nil {
			return nil, err
		}
		if _, err := r.applyCapture(ctx, a.ID, outcome, "webhook"); err != nil {
			return nil, err
		}
	case payment.EventCaptureCompleted, payment.EventCapturePending,
		payment.EventCaptureDeclined, payment.EventCaptureDenied:
		status := event.CaptureStatus
		if status == "" {
			status = event.EventType[strings.LastIndex(event.EventType, ".")+1:]
		}
		outcome := payment.CaptureOutcome{
			Kind:            payment.MapCaptureStatus(status),
			GatewayStatus:   status,
			ExternalOrderID: extID,
			CaptureID:       event.CaptureID,
			CaptureTime:     event.CreateTime,
		}
		if _, err := r.applyCapture(ctx, a.ID, outcome, "webhook"); err != nil {
			return nil, err
		}
	case payment.EventCaptureRefunded, payment.EventCaptureReversed:
		if err := r.applyRefundEvent(ctx, a, event, log); err != nil {
			return nil, err
		}
	default:
		return finish(WebhookIgnored)
	}
	return finish(WebhookProcessed)
}

// applyRefundEvent finds the refund row an event is about, in order: by gateway
// refund id, the attempt's pending row without a gateway id, or a new row for a
// refund started outside this system.
func (r *Reconciler) applyRefundEvent(ctx context.Context, a *payment.Attempt, event payment.WebhookEvent, log *zap.Logger) error {
	if event.RefundID == "" {
		log.Warn("refund event without refund id")
		return nil
	}
	status := payment.MapRefundStatus(event.RefundStatus)

	row, err := r.repo.FindRefundByExternalID(ctx, a.ID, event.RefundID)
	if err != nil && !shared.IsNotFound(err) {
		return err
	}
	if row == nil {
		row, err = r.repo.FindPendingRefundWithoutExternalID(ctx, a.ID)
		switch {
		case err == nil:
			if err := r.repo.BindRefundExternalID(ctx, row.ID, event.RefundID); err != nil {
				return err
			}
			row.ExternalRefundID = event.RefundID
		case shared.IsNotFound(err):
			if row, err = r.insertWebhookRefund(ctx, a, event); err != nil {
				return err
			}
		default:
			return err
		}
	}
	log.Info("refund event matched",
		zap.Int64("refund_id", row.ID), zap.String("external_refund_id", event.RefundID),
		zap.String("refund_status", string(status)))
	return r.settleRefund(ctx, row, status, order.SourcePaymentCallback)
}

func (r *Reconciler) insertWebhookRefund(ctx context.Context, a *payment.Attempt, event payment.WebhookEvent) (*payment.Refund, error) {
	amount := a.AmountMinor
	if event.RefundValue != "" && (event.RefundCurrency == "" || strings.EqualFold(event.RefundCurrency, a.Currency)) {
		cfg, err := r.currencies.Get(ctx, a.Currency)
		if err != nil {
			return nil, err
		}
		if m, err := cfg.ParseMajor(event.RefundValue); err == nil && m.IsPositive() {
			amount = m.AmountMinor()
		}
	}
	now := r.clock.Now()
	row, created, err := r.repo.InsertRefund(ctx, &payment.Refund{
		OrderID:          a.OrderID,
		OrderNo:          a.OrderNo,
		PaymentID:        a.ID,
		ExternalRefundID: event.RefundID,
		ClientRefundNo:   payment.WebhookRefundKey(a.ID, event.RefundID),
		Status:           payment.RefundPending,
		AmountMinor:      amount,
		Currency:         a.Currency,
		ReasonCode:       order.ReasonOther,
		Initiator:        payment.InitiatorSystem,
		Note:             "refund reported by gateway",
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, err
	}
	if created {
		r.logger.Info("refund row created from webhook",
			zap.Int64("payment_id", a.ID), zap.Int64("refund_id", row.ID), zap.Int64("amount", amount))
	}
	return row, nil
}
