package models

import "time"

// ProductModel is the sellable product. Only the fields orders snapshot are mapped.
type ProductModel struct {
	BaseModel
	Title         string `gorm:"size:255;not null"`
	CoverImageURL string `gorm:"size:512"`
	Status        string `gorm:"size:16;not null;default:'ACTIVE'"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "product"
}

// SkuModel is one variant with its stock counters.
// Stock is available for sale; LockedStock is reserved by unpaid orders.
type SkuModel struct {
	BaseModel
	ProductID   int64  `gorm:"not null;index"`
	SkuCode     string `gorm:"size:64;not null;uniqueIndex"`
	Attrs       string `gorm:"type:text"`
	Stock       int64  `gorm:"not null;default:0"`
	LockedStock int64  `gorm:"not null;default:0"`
	Status      string `gorm:"size:16;not null;default:'ACTIVE'"`
}

// TableName returns the table name for GORM
func (SkuModel) TableName() string {
	return "product_sku"
}

// SkuPriceModel is the sale price of a SKU in one currency
type SkuPriceModel struct {
	BaseModel
	SkuID     int64  `gorm:"not null;uniqueIndex:uk_sku_currency,priority:1"`
	Currency  string `gorm:"size:3;not null;uniqueIndex:uk_sku_currency,priority:2"`
	SalePrice int64  `gorm:"not null"`
	IsActive  bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SkuPriceModel) TableName() string {
	return "product_price"
}

// CartItemModel is a line in a shopper's cart
type CartItemModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"not null;index"`
	SkuID     int64 `gorm:"not null"`
	Quantity  int64 `gorm:"not null"`
	Selected  bool  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (CartItemModel) TableName() string {
	return "shopping_cart_item"
}
