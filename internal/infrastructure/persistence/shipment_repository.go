package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// shipmentPending is the status of a placeholder nobody has picked up yet
const shipmentPending = "PENDING"

// GormShipmentRepository implements order.Shipments using GORM
type GormShipmentRepository struct {
	db    *gorm.DB
	idGen shared.IDGenerator
}

// NewGormShipmentRepository creates a new GormShipmentRepository
func NewGormShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db, idGen: shared.UUIDGenerator{}}
}

// EnsurePlaceholder creates the order's shipment unless one exists.
// order_id and idempotency_key are both unique, so a repeat insert is a no-op.
func (r *GormShipmentRepository) EnsurePlaceholder(ctx context.Context, orderID int64, orderNo string) error {
	now := time.Now().UTC()
	m := models.ShipmentModel{
		ShipmentNo:     r.idGen.NewID("SH"),
		OrderID:        orderID,
		OrderNo:        orderNo,
		IdempotencyKey: "shipment-" + orderNo,
		Status:         shipmentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m).Error
}

// ListPaidWithoutShipment returns paid orders that have no shipment row, oldest first
func (r *GormShipmentRepository) ListPaidWithoutShipment(ctx context.Context, limit int) ([]order.PaidOrderRef, error) {
	var rows []struct {
		ID      int64
		OrderNo string
	}
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Select("orders.id, orders.order_no").
		Where("orders.status = ? AND NOT EXISTS (?)",
			string(order.StatusPaid),
			r.db.Model(&models.ShipmentModel{}).Select("1").Where("shipment.order_id = orders.id"),
		).
		Order("orders.paid_at").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]order.PaidOrderRef, len(rows))
	for i, row := range rows {
		out[i] = order.PaidOrderRef{OrderID: row.ID, OrderNo: row.OrderNo}
	}
	return out, nil
}
