package telemetry_test

import (
	"context"
	"testing"

	"github.com/intlshop/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewShopMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewShopMetrics(nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestNewShopMetrics_Noop(t *testing.T) {
	m, err := telemetry.NewShopMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordOrderCreated(ctx, "USD", "WEB")
		m.RecordDiscountFailure(ctx, "EXPIRED")
		m.RecordCapture(ctx, "SUCCESS")
		m.RecordRefund(ctx, "SUCCESS", "ADMIN")
		m.RecordWebhook(ctx, "", "rejected")
	})
}

func TestShopMetrics_Counters(t *testing.T) {
	reader, provider := newManualMeter(t)
	m, err := telemetry.NewShopMetrics(provider.Meter("shop"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordOrderCreated(ctx, "USD", "WEB")
	m.RecordOrderCreated(ctx, "USD", "WEB")
	m.RecordOrderCreated(ctx, "EUR", "APP")
	m.RecordDiscountFailure(ctx, "USAGE_LIMIT")
	m.RecordCapture(ctx, "PENDING")
	m.RecordRefund(ctx, "SUCCESS", "SYSTEM")
	m.RecordWebhook(ctx, "PAYMENT.CAPTURE.COMPLETED", "processed")
	m.RecordWebhook(ctx, "", "rejected")

	metrics := collect(t, reader)

	orders := metrics["shop_orders_created_total"]
	assert.Equal(t, int64(2), sumFor(t, orders,
		telemetry.AttrCurrency.String("USD"), telemetry.AttrOrderSource.String("WEB")))
	assert.Equal(t, int64(1), sumFor(t, orders,
		telemetry.AttrCurrency.String("EUR"), telemetry.AttrOrderSource.String("APP")))

	assert.Equal(t, int64(1), sumFor(t, metrics["shop_discount_failures_total"],
		telemetry.AttrFailureReason.String("USAGE_LIMIT")))
	assert.Equal(t, int64(1), sumFor(t, metrics["shop_payment_captures_total"],
		telemetry.AttrOutcome.String("PENDING")))
	assert.Equal(t, int64(1), sumFor(t, metrics["shop_refunds_total"],
		telemetry.AttrRefundStatus.String("SUCCESS"), telemetry.AttrInitiator.String("SYSTEM")))

	webhooks := metrics["shop_webhooks_total"]
	assert.Equal(t, int64(1), sumFor(t, webhooks,
		telemetry.AttrEventType.String("PAYMENT.CAPTURE.COMPLETED"), telemetry.AttrResult.String("processed")))
	assert.Equal(t, int64(1), sumFor(t, webhooks,
		telemetry.AttrEventType.String("unknown"), telemetry.AttrResult.String("rejected")))
}
