package persistence

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// Stock on product_sku moves between two counters:
//
//	reserve:  stock -> locked_stock   (order created)
//	release:  locked_stock -> stock   (unpaid order cancelled or closed)
//	commit:   locked_stock -> gone    (order paid)
//	restock:  gone -> stock           (refund succeeded)
//
// SKUs are always updated in ascending id order so concurrent transactions
// take row locks in the same sequence.

func sortedSkuIDs(qty map[int64]int64) []int64 {
	ids := make([]int64, 0, len(qty))
	for id, q := range qty {
		if q > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func reserveStock(tx *gorm.DB, qty map[int64]int64) error {
	for _, id := range sortedSkuIDs(qty) {
		q := qty[id]
		res := tx.Model(&models.SkuModel{}).
			Where("id = ? AND stock >= ?", id, q).
			Updates(map[string]any{
				"stock":        gorm.Expr("stock - ?", q),
				"locked_stock": gorm.Expr("locked_stock + ?", q),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.NewConflictError("insufficient stock for sku %d", id)
		}
	}
	return nil
}

func releaseStock(tx *gorm.DB, qty map[int64]int64) error {
	for _, id := range sortedSkuIDs(qty) {
		q := qty[id]
		res := tx.Model(&models.SkuModel{}).
			Where("id = ? AND locked_stock >= ?", id, q).
			Updates(map[string]any{
				"stock":        gorm.Expr("stock + ?", q),
				"locked_stock": gorm.Expr("locked_stock - ?", q),
			})
		if err := lockedRowUpdated(res, id, q); err != nil {
			return err
		}
	}
	return nil
}

func commitStock(tx *gorm.DB, qty map[int64]int64) error {
	for _, id := range sortedSkuIDs(qty) {
		q := qty[id]
		res := tx.Model(&models.SkuModel{}).
			Where("id = ? AND locked_stock >= ?", id, q).
			Update("locked_stock", gorm.Expr("locked_stock - ?", q))
		if err := lockedRowUpdated(res, id, q); err != nil {
			return err
		}
	}
	return nil
}

// lockedRowUpdated reports a Conflict when fewer than q units were reserved
func lockedRowUpdated(res *gorm.DB, skuID, q int64) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewConflictError("sku %d has fewer than %d reserved units", skuID, q)
	}
	return nil
}

func restock(tx *gorm.DB, qty map[int64]int64) error {
	for _, id := range sortedSkuIDs(qty) {
		if err := tx.Model(&models.SkuModel{}).
			Where("id = ?", id).
			Update("stock", gorm.Expr("stock + ?", qty[id])).Error; err != nil {
			return err
		}
	}
	return nil
}

// writeInventoryLogs appends one inventory_log row per SKU moved by the order
func writeInventoryLogs(tx *gorm.DB, orderID int64, change order.InventoryChange, qty map[int64]int64, reason string, at time.Time) error {
	ids := sortedSkuIDs(qty)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.InventoryLogModel, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.InventoryLogModel{
			SkuID:      id,
			OrderID:    orderID,
			ChangeType: string(change),
			Quantity:   qty[id],
			Reason:     order.TruncateNote(reason),
			CreatedAt:  at,
		})
	}
	return tx.Create(&rows).Error
}

// itemQuantities aggregates order line quantities per SKU
func itemQuantities(items []models.OrderItemModel) map[int64]int64 {
	out := make(map[int64]int64, len(items))
	for _, it := range items {
		out[it.SkuID] += it.Quantity
	}
	return out
}
