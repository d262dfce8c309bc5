package persistence

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

var openAttemptStatuses = []string{string(payment.AttemptInit), string(payment.AttemptPending)}

// CreateOrderAndReserveStock inserts the order with its lines, discounts and
// first status log, reserves stock and removes the consumed cart lines.
func (r *GormOrderRepository) CreateOrderAndReserveStock(ctx context.Context, o *order.Order, log order.StatusLog, cartItemIDs []int64) error {
	var m models.OrderModel
	if err := m.FromDomain(o); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return translateError(err, "order "+o.OrderNo)
		}
		o.ID = m.ID
		itemIDs := make(map[int64]int64, len(m.Items))
		for i := range m.Items {
			o.Items[i].ID = m.Items[i].ID
			if _, ok := itemIDs[m.Items[i].SkuID]; !ok {
				itemIDs[m.Items[i].SkuID] = m.Items[i].ID
			}
		}

		if len(o.Discounts) > 0 {
			rows := make([]models.OrderDiscountAppliedModel, len(o.Discounts))
			for i, a := range o.Discounts {
				rows[i] = models.NewDiscountApplied(m.ID, a, itemIDs, m.CreatedAt)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		qty := itemQuantities(m.Items)
		if err := reserveStock(tx, qty); err != nil {
			return err
		}
		if err := writeInventoryLogs(tx, m.ID, order.InventoryReserve, qty, "order created", m.CreatedAt); err != nil {
			return err
		}

		if len(cartItemIDs) > 0 {
			if err := tx.Where("id IN ? AND user_id = ?", cartItemIDs, o.UserID).
				Delete(&models.CartItemModel{}).Error; err != nil {
				return err
			}
		}

		entry := models.NewStatusLog(m.ID, log)
		return tx.Create(&entry).Error
	})
}

// CancelAndReleaseStock moves an unpaid order to CANCELLED
func (r *GormOrderRepository) CancelAndReleaseStock(ctx context.Context, o *order.Order, log order.StatusLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casOrderStatus(tx, o, log.FromStatus, map[string]any{
			"status":            string(o.Status),
			"cancel_reason":     o.CancelReason,
			"cancelled_at":      o.CancelledAt,
			"active_payment_id": nil,
			"updated_at":        o.UpdatedAt,
		}); err != nil {
			return err
		}
		if err := releaseOrderStock(tx, o.ID, "order cancelled", o.UpdatedAt); err != nil {
			return err
		}
		if err := closeOpenAttempts(tx, o.ID, 0, o.UpdatedAt); err != nil {
			return err
		}
		o.ActivePaymentID = nil
		entry := models.NewStatusLog(o.ID, log)
		return tx.Create(&entry).Error
	})
}

// CloseOrder moves the order to CLOSED. Stock is released only for unpaid orders.
func (r *GormOrderRepository) CloseOrder(ctx context.Context, o *order.Order, log order.StatusLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casOrderStatus(tx, o, log.FromStatus, map[string]any{
			"status":            string(o.Status),
			"active_payment_id": nil,
			"updated_at":        o.UpdatedAt,
		}); err != nil {
			return err
		}
		if log.FromStatus == order.StatusPendingPayment {
			if err := releaseOrderStock(tx, o.ID, "order closed", o.UpdatedAt); err != nil {
				return err
			}
			if err := closeOpenAttempts(tx, o.ID, 0, o.UpdatedAt); err != nil {
				return err
			}
		}
		o.ActivePaymentID = nil
		entry := models.NewStatusLog(o.ID, log)
		return tx.Create(&entry).Error
	})
}

// SaveRefundRequest persists PAID -> REFUND_REQUESTED with the shopper's reason
func (r *GormOrderRepository) SaveRefundRequest(ctx context.Context, o *order.Order, log order.StatusLog) error {
	if o.Refund == nil {
		return shared.NewIllegalParamError("order %s has no refund request", o.OrderNo)
	}
	var m models.OrderModel
	if err := m.SetRefundRequest(*o.Refund); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casOrderStatus(tx, o, log.FromStatus, map[string]any{
			"status":             string(o.Status),
			"refund_reason_code": m.RefundReasonCode,
			"refund_reason_text": m.RefundReasonText,
			"refund_attachments": m.RefundAttachments,
			"updated_at":         o.UpdatedAt,
		}); err != nil {
			return err
		}
		entry := models.NewStatusLog(o.ID, log)
		return tx.Create(&entry).Error
	})
}

// UpdateAddressSnapshot writes the changed address once, before shipment
func (r *GormOrderRepository) UpdateAddressSnapshot(ctx context.Context, o *order.Order) error {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ? AND address_changed = ? AND status IN ?", o.ID, false,
			[]string{string(order.StatusPendingPayment), string(order.StatusPaid)}).
		Updates(map[string]any{
			"address_snapshot": string(addr),
			"address_changed":  true,
			"updated_at":       o.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewConflictError("order %s address can no longer be changed", o.OrderNo)
	}
	return nil
}

// FindByOrderNo loads the order with its lines and discounts
func (r *GormOrderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	return r.find(ctx, "order "+orderNo, "order_no = ?", orderNo)
}

// FindByID loads the order with its lines and discounts
func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.find(ctx, "order", "id = ?", id)
}

func (r *GormOrderRepository) find(ctx context.Context, what string, query string, arg any) (*order.Order, error) {
	var m models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Discounts", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where(query, arg).
		First(&m).Error
	if err != nil {
		return nil, translateError(err, what)
	}
	return m.ToDomain()
}

// ListStatusLogs returns the audit trail in insertion order
func (r *GormOrderRepository) ListStatusLogs(ctx context.Context, orderID int64) ([]order.StatusLog, error) {
	var rows []models.OrderStatusLogModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]order.StatusLog, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}

// ListTimeoutCandidates returns unpaid order numbers created before deadline, oldest first
func (r *GormOrderRepository) ListTimeoutCandidates(ctx context.Context, deadline time.Time, limit int) ([]string, error) {
	var orderNos []string
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("status = ? AND created_at < ?", string(order.StatusPendingPayment), deadline).
		Order("created_at").
		Limit(limit).
		Pluck("order_no", &orderNos).Error
	return orderNos, err
}

// casOrderStatus updates the order only if it is still in from
func casOrderStatus(tx *gorm.DB, o *order.Order, from order.Status, values map[string]any) error {
	res := tx.Model(&models.OrderModel{}).
		Where("id = ? AND status = ?", o.ID, string(from)).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewConflictError("order %s is no longer %s", o.OrderNo, from)
	}
	return nil
}

func releaseOrderStock(tx *gorm.DB, orderID int64, reason string, at time.Time) error {
	var items []models.OrderItemModel
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return err
	}
	qty := itemQuantities(items)
	if err := releaseStock(tx, qty); err != nil {
		return err
	}
	return writeInventoryLogs(tx, orderID, order.InventoryRelease, qty, reason, at)
}

// closeOpenAttempts closes every INIT/PENDING attempt of the order except keepID
func closeOpenAttempts(tx *gorm.DB, orderID, keepID int64, now time.Time) error {
	q := tx.Model(&models.PaymentOrderModel{}).
		Where("order_id = ? AND status IN ?", orderID, openAttemptStatuses)
	if keepID > 0 {
		q = q.Where("id <> ?", keepID)
	}
	return q.Updates(map[string]any{
		"status":     string(payment.AttemptClosed),
		"updated_at": now,
	}).Error
}
