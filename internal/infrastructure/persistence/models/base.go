package models

import "time"

// BaseModel provides the surrogate key and timestamps shared by all tables.
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// All returns every model in migration order. Tests use it with AutoMigrate;
// deployed databases are migrated from the SQL files under migrations/.
func All() []any {
	return []any{
		&CurrencyModel{},
		&FxRateLatestModel{},
		&FxRateHistoryModel{},
		&ProductModel{},
		&SkuModel{},
		&SkuPriceModel{},
		&CartItemModel{},
		&DiscountPolicyModel{},
		&DiscountPolicyAmountModel{},
		&DiscountCodeModel{},
		&DiscountCodeProductModel{},
		&OrderModel{},
		&OrderItemModel{},
		&OrderDiscountAppliedModel{},
		&OrderStatusLogModel{},
		&InventoryLogModel{},
		&PaymentOrderModel{},
		&PaymentRefundModel{},
		&PaymentRefundItemModel{},
		&ShipmentModel{},
	}
}
