package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when ShopMetrics is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// ShopMetrics holds the order and payment business counters. It satisfies the
// Metrics ports of the order service and the payment reconciler.
type ShopMetrics struct {
	ordersCreated    *Counter
	discountFailures *Counter
	captures         *Counter
	refunds          *Counter
	webhooks         *Counter
}

// NewShopMetrics registers all shop counters on meter.
func NewShopMetrics(meter metric.Meter) (*ShopMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ShopMetrics{}
	specs := []struct {
		dst         **Counter
		name        string
		description string
		unit        string
	}{
		{&m.ordersCreated, "shop_orders_created_total", "Orders created by currency and source", "{order}"},
		{&m.discountFailures, "shop_discount_failures_total", "Discount codes rejected by reason", "{code}"},
		{&m.captures, "shop_payment_captures_total", "Capture attempts by outcome", "{capture}"},
		{&m.refunds, "shop_refunds_total", "Refund status transitions by initiator", "{refund}"},
		{&m.webhooks, "shop_webhooks_total", "PayPal webhook deliveries by event type and result", "{event}"},
	}

	for _, s := range specs {
		c, err := NewCounter(meter, s.name, s.description, s.unit)
		if err != nil {
			return nil, err
		}
		*s.dst = c
	}
	return m, nil
}

// RecordOrderCreated counts a newly created order.
func (m *ShopMetrics) RecordOrderCreated(ctx context.Context, currency string, source string) {
	m.ordersCreated.Inc(ctx, AttrCurrency.String(currency), AttrOrderSource.String(source))
}

// RecordDiscountFailure counts a rejected discount code.
func (m *ShopMetrics) RecordDiscountFailure(ctx context.Context, reason string) {
	m.discountFailures.Inc(ctx, AttrFailureReason.String(reason))
}

// RecordCapture counts a capture attempt outcome.
func (m *ShopMetrics) RecordCapture(ctx context.Context, outcome string) {
	m.captures.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordRefund counts a refund reaching status.
func (m *ShopMetrics) RecordRefund(ctx context.Context, status string, initiator string) {
	m.refunds.Inc(ctx, AttrRefundStatus.String(status), AttrInitiator.String(initiator))
}

// RecordWebhook counts a webhook delivery. An empty event type is reported as "unknown".
func (m *ShopMetrics) RecordWebhook(ctx context.Context, eventType string, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhooks.Inc(ctx, AttrEventType.String(eventType), AttrResult.String(result))
}
