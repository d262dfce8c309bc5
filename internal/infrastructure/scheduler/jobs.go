package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	orderapp "github.com/intlshop/backend/internal/application/order"
	paymentapp "github.com/intlshop/backend/internal/application/payment"
	pricingapp "github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/infrastructure/config"
)

// Job names
const (
	JobPaymentSync          = "payment_sync"
	JobRefundSync           = "refund_sync"
	JobOrderTimeout         = "order_timeout"
	JobShipmentCompensation = "shipment_compensation"
	JobFXSync               = "fx_sync"
)

// PaymentSyncer polls the gateway for attempts and refunds that are not final
type PaymentSyncer interface {
	SyncNonFinalPayments(ctx context.Context, limit int) (paymentapp.SyncReport, error)
	SyncNonFinalRefunds(ctx context.Context, limit int) (paymentapp.SyncReport, error)
	CompensateShipments(ctx context.Context, limit int) (paymentapp.SyncReport, error)
}

// OrderTimeouts cancels unpaid orders past their payment window
type OrderTimeouts interface {
	CancelTimedOut(ctx context.Context, limit int) (orderapp.BatchReport, error)
}

// FxSyncer refreshes the latest exchange rates
type FxSyncer interface {
	SyncLatest(ctx context.Context) (int, error)
}

// FxAmountRecomputer refreshes FX-derived discount amounts
type FxAmountRecomputer interface {
	RecomputeFxAmountsAll(ctx context.Context, batch int) (pricingapp.RecomputeReport, error)
}

// JobDeps are the services the built-in jobs drive
type JobDeps struct {
	Payments  PaymentSyncer
	Orders    OrderTimeouts
	FX        FxSyncer
	Discounts FxAmountRecomputer
	Logger    *zap.Logger
}

// RegisterJobs registers every enabled built-in job on r
func RegisterJobs(r *Runner, cfg config.SchedulerConfig, deps JobDeps) error {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jobs := []struct {
		name string
		cfg  config.JobConfig
		run  func(ctx context.Context, batch int) error
	}{
		{JobPaymentSync, cfg.PaymentSync, func(ctx context.Context, batch int) error {
			rep, err := deps.Payments.SyncNonFinalPayments(ctx, batch)
			logReport(logger, JobPaymentSync, rep.Scanned, rep.Processed, rep.Failed)
			return err
		}},
		{JobRefundSync, cfg.RefundSync, func(ctx context.Context, batch int) error {
			rep, err := deps.Payments.SyncNonFinalRefunds(ctx, batch)
			logReport(logger, JobRefundSync, rep.Scanned, rep.Processed, rep.Failed)
			return err
		}},
		{JobOrderTimeout, cfg.OrderTimeout, func(ctx context.Context, batch int) error {
			rep, err := deps.Orders.CancelTimedOut(ctx, batch)
			logReport(logger, JobOrderTimeout, rep.Scanned, rep.Processed, rep.Failed)
			return err
		}},
		{JobShipmentCompensation, cfg.ShipmentCompensation, func(ctx context.Context, batch int) error {
			rep, err := deps.Payments.CompensateShipments(ctx, batch)
			logReport(logger, JobShipmentCompensation, rep.Scanned, rep.Processed, rep.Failed)
			return err
		}},
		{JobFXSync, cfg.FXSync, func(ctx context.Context, batch int) error {
			pairs, err := deps.FX.SyncLatest(ctx)
			if err != nil {
				return err
			}
			rep, err := deps.Discounts.RecomputeFxAmountsAll(ctx, batch)
			logger.Info("fx sync finished",
				zap.Int("pairs", pairs),
				zap.Int("policies", rep.Policies),
				zap.Int("updated", rep.Updated),
				zap.Int("skipped", rep.Skipped))
			return err
		}},
	}

	for _, j := range jobs {
		if !j.cfg.Enabled {
			logger.Info("job disabled", zap.String("job", j.name))
			continue
		}
		if err := checkDeps(j.name, deps); err != nil {
			return err
		}
		batch, run := j.cfg.BatchSize, j.run
		if err := r.Register(Job{
			Name:     j.name,
			Interval: j.cfg.Interval,
			Timeout:  cfg.JobTimeout,
			Run:      func(ctx context.Context) error { return run(ctx, batch) },
		}); err != nil {
			return err
		}
	}
	return nil
}

func checkDeps(name string, deps JobDeps) error {
	var missing bool
	switch name {
	case JobPaymentSync, JobRefundSync, JobShipmentCompensation:
		missing = deps.Payments == nil
	case JobOrderTimeout:
		missing = deps.Orders == nil
	case JobFXSync:
		missing = deps.FX == nil || deps.Discounts == nil
	}
	if missing {
		return errors.Join(ErrInvalidConfig, errors.New("job "+name+" has no service to drive"))
	}
	return nil
}

func logReport(logger *zap.Logger, job string, scanned, processed, failed int) {
	if scanned == 0 {
		return
	}
	fields := []zap.Field{
		zap.String("job", job),
		zap.Int("scanned", scanned),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
	}
	if failed > 0 {
		logger.Warn("batch finished with failures", fields...)
		return
	}
	logger.Info("batch finished", fields...)
}
