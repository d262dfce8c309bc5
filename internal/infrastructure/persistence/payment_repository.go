package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements payment.Repository using GORM
type GormPaymentRepository struct {
	db    *gorm.DB
	idGen shared.IDGenerator
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db, idGen: shared.UUIDGenerator{}}
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

var openRefundStatuses = []string{string(payment.RefundInit), string(payment.RefundPending)}

// PrepareCheckout picks the attempt to check out: the active one, else the newest
// open one, else a new INIT attempt. Other open attempts are closed.
func (r *GormPaymentRepository) PrepareCheckout(ctx context.Context, userID int64, orderNo string, now time.Time) (payment.CheckoutTarget, error) {
	var target payment.CheckoutTarget
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.OrderModel
		if err := tx.Clauses(forUpdate).Where("order_no = ?", orderNo).First(&o).Error; err != nil {
			return translateError(err, "order "+orderNo)
		}
		if o.UserID != userID {
			return shared.NewNotFoundError("order %s not found", orderNo)
		}
		if o.Status != string(order.StatusPendingPayment) {
			return shared.NewConflictError("order %s is %s and cannot be paid", orderNo, o.Status)
		}

		var open []models.PaymentOrderModel
		if err := tx.Where("order_id = ? AND status IN ?", o.ID, openAttemptStatuses).
			Order("id DESC").Find(&open).Error; err != nil {
			return err
		}
		var chosen *models.PaymentOrderModel
		for i := range open {
			if o.ActivePaymentID != nil && open[i].ID == *o.ActivePaymentID {
				chosen = &open[i]
				break
			}
		}
		if chosen == nil && len(open) > 0 {
			chosen = &open[0]
		}
		if chosen == nil {
			chosen = &models.PaymentOrderModel{
				OrderID:   o.ID,
				OrderNo:   o.OrderNo,
				UserID:    o.UserID,
				Channel:   string(payment.ChannelPayPal),
				Amount:    o.PayAmount,
				Currency:  o.Currency,
				Status:    string(payment.AttemptInit),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(chosen).Error; err != nil {
				return err
			}
		}

		if err := closeOpenAttempts(tx, o.ID, chosen.ID, now); err != nil {
			return err
		}
		if err := tx.Model(&models.OrderModel{}).Where("id = ?", o.ID).
			Updates(map[string]any{"active_payment_id": chosen.ID, "updated_at": now}).Error; err != nil {
			return err
		}
		target = payment.CheckoutTarget{Attempt: chosen.ToDomain(), OrderNo: o.OrderNo, Currency: o.Currency}
		return nil
	})
	return target, err
}

// BindExternalOrder stores the gateway order id if none is bound yet
func (r *GormPaymentRepository) BindExternalOrder(ctx context.Context, paymentID int64, externalOrderID, approveURL string) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentOrderModel{}).
		Where("id = ? AND external_id IS NULL", paymentID).
		Updates(map[string]any{
			"external_id": externalOrderID,
			"approve_url": approveURL,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error, "gateway order "+externalOrderID)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	a, err := r.FindAttempt(ctx, paymentID)
	if err != nil {
		return err
	}
	if a.ExternalOrderID == externalOrderID {
		return nil
	}
	return shared.NewConflictError("payment %d is already bound to %s", paymentID, a.ExternalOrderID)
}

// FindAttempt loads one attempt
func (r *GormPaymentRepository) FindAttempt(ctx context.Context, paymentID int64) (*payment.Attempt, error) {
	return r.findAttempt(ctx, "payment", "id = ?", paymentID)
}

// FindAttemptByExternalOrderID loads the attempt bound to a gateway order
func (r *GormPaymentRepository) FindAttemptByExternalOrderID(ctx context.Context, externalOrderID string) (*payment.Attempt, error) {
	return r.findAttempt(ctx, "payment for gateway order "+externalOrderID, "external_id = ?", externalOrderID)
}

// FindSuccessfulAttempt loads the captured attempt of an order
func (r *GormPaymentRepository) FindSuccessfulAttempt(ctx context.Context, orderID int64) (*payment.Attempt, error) {
	var m models.PaymentOrderModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, string(payment.AttemptSuccess)).
		Order("id DESC").First(&m).Error
	if err != nil {
		return nil, translateError(err, "successful payment")
	}
	return m.ToDomain(), nil
}

func (r *GormPaymentRepository) findAttempt(ctx context.Context, what, query string, arg any) (*payment.Attempt, error) {
	var m models.PaymentOrderModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		return nil, translateError(err, what)
	}
	return m.ToDomain(), nil
}

// ApplyCaptureResult persists what DecideCapture says about outcome
func (r *GormPaymentRepository) ApplyCaptureResult(ctx context.Context, paymentID int64, outcome payment.CaptureOutcome, paymentTTL time.Duration, now time.Time) (payment.CaptureApplied, error) {
	var applied payment.CaptureApplied
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.PaymentOrderModel
		if err := tx.Clauses(forUpdate).Where("id = ?", paymentID).First(&a).Error; err != nil {
			return translateError(err, "payment")
		}
		var om models.OrderModel
		if err := tx.Clauses(forUpdate).Preload("Items").Where("id = ?", a.OrderID).First(&om).Error; err != nil {
			return translateError(err, "order "+a.OrderNo)
		}

		dec, err := payment.DecideCapture(payment.CaptureState{
			AttemptStatus:   payment.AttemptStatus(a.Status),
			AttemptActive:   om.ActivePaymentID != nil && *om.ActivePaymentID == a.ID,
			ExternalOrderID: derefString(a.ExternalID),
			OrderStatus:     order.Status(om.Status),
			OrderCreatedAt:  om.CreatedAt,
		}, outcome, paymentTTL)
		if err != nil {
			return err
		}
		applied.Decision = dec

		if dec.Changed {
			values := map[string]any{"status": string(dec.AttemptStatus), "updated_at": now}
			if outcome.CaptureID != "" && derefString(a.CaptureID) == "" {
				values["capture_id"] = outcome.CaptureID
				a.CaptureID = &outcome.CaptureID
			}
			if outcome.ExternalOrderID != "" && a.ExternalID == nil {
				values["external_id"] = outcome.ExternalOrderID
				a.ExternalID = &outcome.ExternalOrderID
			}
			res := tx.Model(&models.PaymentOrderModel{}).
				Where("id = ? AND status = ?", a.ID, a.Status).
				Updates(values)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return shared.NewConflictError("payment %d changed concurrently", a.ID)
			}
			a.Status = string(dec.AttemptStatus)
			a.UpdatedAt = now
		}

		if dec.MarkOrderPaid {
			o, err := om.ToDomain()
			if err != nil {
				return err
			}
			log, err := o.MarkPaid(now)
			if err != nil {
				return err
			}
			if err := casOrderStatus(tx, o, log.FromStatus, map[string]any{
				"status":     string(o.Status),
				"paid_at":    o.PaidAt,
				"updated_at": now,
			}); err != nil {
				return err
			}
			qty := itemQuantities(om.Items)
			if err := commitStock(tx, qty); err != nil {
				return err
			}
			if err := writeInventoryLogs(tx, o.ID, order.InventoryDeduct, qty, "order paid", now); err != nil {
				return err
			}
			entry := models.NewStatusLog(o.ID, log)
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		applied.Attempt = a.ToDomain()
		return nil
	})
	return applied, err
}

// CloseAttempt closes an open attempt and clears it as the order's active one
func (r *GormPaymentRepository) CloseAttempt(ctx context.Context, paymentID int64, now time.Time) (bool, error) {
	closed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.PaymentOrderModel
		if err := tx.Clauses(forUpdate).Where("id = ?", paymentID).First(&a).Error; err != nil {
			return translateError(err, "payment")
		}
		switch payment.AttemptStatus(a.Status) {
		case payment.AttemptClosed, payment.AttemptFail:
			return nil
		case payment.AttemptSuccess, payment.AttemptException:
			return shared.NewConflictError("payment %d is %s and cannot be closed", a.ID, a.Status)
		}
		if err := tx.Model(&models.PaymentOrderModel{}).Where("id = ?", a.ID).
			Updates(map[string]any{"status": string(payment.AttemptClosed), "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.OrderModel{}).
			Where("id = ? AND active_payment_id = ?", a.OrderID, a.ID).
			Updates(map[string]any{"active_payment_id": nil, "updated_at": now}).Error; err != nil {
			return err
		}
		closed = true
		return nil
	})
	return closed, err
}

// MarkPolled stamps the poll time and fills an empty capture id
func (r *GormPaymentRepository) MarkPolled(ctx context.Context, paymentID int64, captureID string, now time.Time) error {
	values := map[string]any{"last_polled_at": now, "updated_at": now}
	if captureID != "" {
		values["capture_id"] = gorm.Expr("COALESCE(NULLIF(capture_id, ''), ?)", captureID)
	}
	return r.db.WithContext(ctx).Model(&models.PaymentOrderModel{}).
		Where("id = ?", paymentID).
		Updates(values).Error
}

// RecordNotification overwrites the attempt's last webhook payload
func (r *GormPaymentRepository) RecordNotification(ctx context.Context, paymentID int64, n payment.Notification) error {
	payload := string(n.Payload)
	res := r.db.WithContext(ctx).Model(&models.PaymentOrderModel{}).
		Where("id = ?", paymentID).
		Updates(map[string]any{
			"notify_event_id":  n.EventID,
			"notify_payload":   payload,
			"notify_digest":    n.Digest,
			"last_notified_at": n.At,
			"updated_at":       n.At,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewNotFoundError("payment %d not found", paymentID)
	}
	return nil
}

// ListSyncCandidates returns the attempts the poller should ask the gateway about,
// least recently polled first
func (r *GormPaymentRepository) ListSyncCandidates(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.PaymentOrderModel{}).
		Where("(status IN ? AND external_id IS NOT NULL) OR (status = ? AND NOT EXISTS (?))",
			openAttemptStatuses,
			string(payment.AttemptException),
			r.db.Model(&models.PaymentRefundModel{}).
				Select("1").
				Where("payment_refund.payment_order_id = payment_order.id AND payment_refund.initiator = ? AND payment_refund.client_refund_no LIKE ?",
					string(payment.InitiatorSystem), "ppref-%"),
		).
		Order("COALESCE(last_polled_at, created_at)").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// FindOpenRefund returns the order's refund still waiting on the gateway
func (r *GormPaymentRepository) FindOpenRefund(ctx context.Context, orderID int64) (*payment.Refund, error) {
	return r.findRefund(ctx, r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, openRefundStatuses).
		Order("id DESC"))
}

// CountRefunds counts every refund row of the order
func (r *GormPaymentRepository) CountRefunds(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PaymentRefundModel{}).Where("order_id = ?", orderID).Count(&n).Error
	return n, err
}

// FindRefund loads one refund with its items
func (r *GormPaymentRepository) FindRefund(ctx context.Context, refundID int64) (*payment.Refund, error) {
	return r.findRefund(ctx, r.db.WithContext(ctx).Where("id = ?", refundID))
}

// FindRefundByExternalID loads the refund bound to a gateway refund
func (r *GormPaymentRepository) FindRefundByExternalID(ctx context.Context, paymentID int64, externalRefundID string) (*payment.Refund, error) {
	return r.findRefund(ctx, r.db.WithContext(ctx).
		Where("payment_order_id = ? AND external_refund_id = ?", paymentID, externalRefundID))
}

// FindPendingRefundWithoutExternalID loads the oldest unbound open refund of an attempt
func (r *GormPaymentRepository) FindPendingRefundWithoutExternalID(ctx context.Context, paymentID int64) (*payment.Refund, error) {
	return r.findRefund(ctx, r.db.WithContext(ctx).
		Where("payment_order_id = ? AND status IN ? AND external_refund_id IS NULL", paymentID, openRefundStatuses).
		Order("id"))
}

// ExistsRefundDedupeKey reports whether a refund with the client refund number exists
func (r *GormPaymentRepository) ExistsRefundDedupeKey(ctx context.Context, paymentID int64, clientRefundNo string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PaymentRefundModel{}).
		Where("payment_order_id = ? AND client_refund_no = ?", paymentID, clientRefundNo).
		Count(&n).Error
	return n > 0, err
}

// ListRefundsByPayment returns every refund of an attempt, oldest first
func (r *GormPaymentRepository) ListRefundsByPayment(ctx context.Context, paymentID int64) ([]*payment.Refund, error) {
	var rows []models.PaymentRefundModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("payment_order_id = ?", paymentID).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*payment.Refund, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

func (r *GormPaymentRepository) findRefund(ctx context.Context, q *gorm.DB) (*payment.Refund, error) {
	var m models.PaymentRefundModel
	if err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).First(&m).Error; err != nil {
		return nil, translateError(err, "refund")
	}
	return m.ToDomain(), nil
}

// findExistingRefund matches rf by client refund number, then by gateway refund id
func findExistingRefund(tx *gorm.DB, rf *payment.Refund) (*models.PaymentRefundModel, error) {
	var m models.PaymentRefundModel
	q := tx.Preload("Items").Where("payment_order_id = ? AND client_refund_no = ?", rf.PaymentID, rf.ClientRefundNo)
	err := q.First(&m).Error
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) || rf.ExternalRefundID == "" {
		return nil, err
	}
	err = tx.Preload("Items").
		Where("payment_order_id = ? AND external_refund_id = ?", rf.PaymentID, rf.ExternalRefundID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertRefund inserts rf unless a row with its client refund number or
// gateway refund id exists, in which case that row is returned.
func (r *GormPaymentRepository) InsertRefund(ctx context.Context, rf *payment.Refund) (*payment.Refund, bool, error) {
	db := r.db.WithContext(ctx)
	existing, err := findExistingRefund(db, rf)
	switch {
	case err == nil:
		return existing.ToDomain(), false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	var m models.PaymentRefundModel
	m.FromDomain(rf)
	if m.RefundNo == "" {
		m.RefundNo = r.idGen.NewID("RF")
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, ferr := findExistingRefund(db, rf)
		if ferr != nil {
			return nil, false, translateError(ferr, "refund "+rf.ClientRefundNo)
		}
		return existing.ToDomain(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// BindRefundExternalID fills the gateway refund id once
func (r *GormPaymentRepository) BindRefundExternalID(ctx context.Context, refundID int64, externalRefundID string) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentRefundModel{}).
		Where("id = ? AND external_refund_id IS NULL", refundID).
		Updates(map[string]any{"external_refund_id": externalRefundID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return translateError(res.Error, "gateway refund "+externalRefundID)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	rf, err := r.FindRefund(ctx, refundID)
	if err != nil {
		return err
	}
	if rf.ExternalRefundID == externalRefundID {
		return nil
	}
	return shared.NewConflictError("refund %d is already bound to %s", refundID, rf.ExternalRefundID)
}

// ConfirmRefundAndRestock records an operator refund the gateway accepted. A row a
// webhook created first for the same gateway refund is merged into it.
func (r *GormPaymentRepository) ConfirmRefundAndRestock(ctx context.Context, c payment.ConfirmedRefund, now time.Time) (*payment.Refund, error) {
	var refundID int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findExistingRefund(tx, c.Refund)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		status := c.Refund.Status
		if existing == nil {
			var m models.PaymentRefundModel
			m.FromDomain(c.Refund)
			if m.RefundNo == "" {
				m.RefundNo = r.idGen.NewID("RF")
			}
			if err := tx.Create(&m).Error; err != nil {
				return translateError(err, "refund "+c.Refund.ClientRefundNo)
			}
			refundID = m.ID
		} else {
			refundID = existing.ID
			if payment.RefundStatus(existing.Status).IsFinal() {
				status = payment.RefundStatus(existing.Status)
			}
			if err := tx.Model(&models.PaymentRefundModel{}).Where("id = ?", existing.ID).
				Updates(map[string]any{
					"client_refund_no": c.Refund.ClientRefundNo,
					"amount":           c.Refund.AmountMinor,
					"items_amount":     c.Refund.ItemsAmountMinor,
					"shipping_amount":  c.Refund.ShippingAmountMinor,
					"reason_code":      string(c.Refund.ReasonCode),
					"reason_text":      order.TruncateNote(c.Refund.Note),
					"initiator":        string(payment.InitiatorAdmin),
					"status":           string(status),
					"updated_at":       now,
				}).Error; err != nil {
				return err
			}
			if len(existing.Items) == 0 && len(c.Refund.Items) > 0 {
				var m models.PaymentRefundModel
				m.FromDomain(c.Refund)
				for i := range m.Items {
					m.Items[i].RefundID = existing.ID
				}
				if err := tx.Create(&m.Items).Error; err != nil {
					return err
				}
			}
		}

		if status != payment.RefundSuccess {
			return nil
		}
		_, err = refundOrder(tx, c.Refund.OrderID, order.SourceAdmin, c.Note, c.Restock, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.FindRefund(ctx, refundID)
}

// ApplyRefundResult settles a refund. A final row only changes the order when it
// succeeded and the order is still waiting for the refund.
func (r *GormPaymentRepository) ApplyRefundResult(ctx context.Context, refundID int64, status payment.RefundStatus, source order.EventSource, now time.Time) (payment.RefundApplied, error) {
	var applied payment.RefundApplied
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.PaymentRefundModel
		if err := tx.Clauses(forUpdate).Preload("Items").Where("id = ?", refundID).First(&m).Error; err != nil {
			return translateError(err, "refund")
		}
		current := payment.RefundStatus(m.Status)
		switch {
		case current.IsFinal() && current != status:
			return nil
		case current != status:
			res := tx.Model(&models.PaymentRefundModel{}).
				Where("id = ? AND status = ?", m.ID, m.Status).
				Updates(map[string]any{"status": string(status), "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return shared.NewConflictError("refund %d changed concurrently", m.ID)
			}
			m.Status = string(status)
			applied.StatusChanged = true
		}
		if status != payment.RefundSuccess {
			return nil
		}

		var attemptStatus string
		if err := tx.Model(&models.PaymentOrderModel{}).Where("id = ?", m.PaymentOrderID).
			Pluck("status", &attemptStatus).Error; err != nil {
			return err
		}
		if attemptStatus != string(payment.AttemptSuccess) {
			return nil
		}
		var qty map[int64]int64
		if len(m.Items) > 0 {
			qty = make(map[int64]int64, len(m.Items))
			for _, it := range m.Items {
				qty[it.SkuID] += it.Quantity
			}
		}
		refunded, err := refundOrder(tx, m.OrderID, source, "refund "+m.RefundNo+" succeeded", qty, now)
		applied.OrderRefunded = refunded
		return err
	})
	if err != nil {
		return applied, err
	}
	applied.Refund, err = r.FindRefund(ctx, refundID)
	return applied, err
}

// refundOrder marks a REFUND_REQUESTED order REFUNDED and restocks qty,
// or every order line when qty is nil. Other statuses are left alone.
func refundOrder(tx *gorm.DB, orderID int64, source order.EventSource, note string, qty map[int64]int64, now time.Time) (bool, error) {
	var om models.OrderModel
	if err := tx.Clauses(forUpdate).Preload("Items").Where("id = ?", orderID).First(&om).Error; err != nil {
		return false, translateError(err, "order")
	}
	if om.Status != string(order.StatusRefundRequested) {
		return false, nil
	}
	o, err := om.ToDomain()
	if err != nil {
		return false, err
	}
	log, err := o.MarkRefunded(source, note, now)
	if err != nil {
		return false, err
	}
	if err := casOrderStatus(tx, o, log.FromStatus, map[string]any{
		"status":     string(o.Status),
		"updated_at": now,
	}); err != nil {
		return false, err
	}
	if qty == nil {
		qty = itemQuantities(om.Items)
	}
	if err := restock(tx, qty); err != nil {
		return false, err
	}
	if err := writeInventoryLogs(tx, o.ID, order.InventoryRestock, qty, "refund succeeded", now); err != nil {
		return false, err
	}
	entry := models.NewStatusLog(o.ID, log)
	return true, tx.Create(&entry).Error
}

// ListNonFinalRefunds returns refunds to poll plus successful refunds whose
// order was not marked refunded yet
func (r *GormPaymentRepository) ListNonFinalRefunds(ctx context.Context, limit int) ([]*payment.Refund, error) {
	var rows []models.PaymentRefundModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_refund.status IN ? OR (payment_refund.status = ? AND EXISTS (?))",
			openRefundStatuses,
			string(payment.RefundSuccess),
			r.db.Table("orders").
				Select("1").
				Joins("JOIN payment_order ON payment_order.order_id = orders.id").
				Where("orders.id = payment_refund.order_id AND orders.status = ? AND payment_order.id = payment_refund.payment_order_id AND payment_order.status = ?",
					string(order.StatusRefundRequested), string(payment.AttemptSuccess)),
		).
		Order("payment_refund.updated_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*payment.Refund, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
