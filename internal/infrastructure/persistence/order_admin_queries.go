package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// ListOrders pages through orders matching f, newest first. Lines are loaded,
// discount rows are not.
func (r *GormOrderRepository) ListOrders(ctx context.Context, f order.ListFilter) ([]*order.Order, int64, error) {
	f.Normalize()
	filter := func(db *gorm.DB) *gorm.DB {
		if f.Status != "" {
			db = db.Where("status = ?", string(f.Status))
		}
		if f.UserID > 0 {
			db = db.Where("user_id = ?", f.UserID)
		}
		if f.OrderNo != "" {
			db = db.Where("order_no = ?", f.OrderNo)
		}
		if f.CreatedFrom != nil {
			db = db.Where("created_at >= ?", *f.CreatedFrom)
		}
		if f.CreatedBefore != nil {
			db = db.Where("created_at < ?", *f.CreatedBefore)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*order.Order{}, 0, nil
	}

	var rows []models.OrderModel
	if err := r.db.WithContext(ctx).Scopes(filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC, id DESC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*order.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, nil
}

// ListInventoryLogs returns the stock movements of one order in insertion order
func (r *GormOrderRepository) ListInventoryLogs(ctx context.Context, orderID int64) ([]order.InventoryLog, error) {
	var rows []models.InventoryLogModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]order.InventoryLog, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}

type moneyRow struct {
	Currency string
	Amount   int64
	N        int64
}

func toMoneyTotals(rows []moneyRow) []order.MoneyTotal {
	out := make([]order.MoneyTotal, len(rows))
	for i, row := range rows {
		out[i] = order.MoneyTotal{Currency: row.Currency, AmountMinor: row.Amount, Count: row.N}
	}
	return out
}

// Stats aggregates order counts per status, paid amounts per currency and
// successful refunds per currency
func (r *GormOrderRepository) Stats(ctx context.Context) (order.Stats, error) {
	db := r.db.WithContext(ctx)
	stats := order.Stats{OrdersByStatus: map[order.Status]int64{}}

	var byStatus []struct {
		Status string
		N      int64
	}
	if err := db.Model(&models.OrderModel{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return stats, err
	}
	for _, row := range byStatus {
		stats.OrdersByStatus[order.Status(row.Status)] = row.N
	}

	var paid []moneyRow
	if err := db.Model(&models.OrderModel{}).
		Select("currency, SUM(pay_amount) AS amount, COUNT(*) AS n").
		Where("paid_at IS NOT NULL").
		Group("currency").
		Order("currency").
		Scan(&paid).Error; err != nil {
		return stats, err
	}
	stats.Paid = toMoneyTotals(paid)

	var refunded []moneyRow
	if err := db.Model(&models.PaymentRefundModel{}).
		Select("currency, SUM(amount) AS amount, COUNT(*) AS n").
		Where("status = ?", string(payment.RefundSuccess)).
		Group("currency").
		Order("currency").
		Scan(&refunded).Error; err != nil {
		return stats, err
	}
	stats.Refunded = toMoneyTotals(refunded)

	if err := db.Model(&models.PaymentRefundModel{}).
		Where("status IN ?", openRefundStatuses).
		Count(&stats.PendingRefunds).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
