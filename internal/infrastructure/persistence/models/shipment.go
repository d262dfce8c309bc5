package models

import "time"

// ShipmentModel is the placeholder shipment created once an order is paid.
// Carrier fields are filled by the fulfilment system.
type ShipmentModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ShipmentNo     string `gorm:"size:64;not null;uniqueIndex"`
	OrderID        int64  `gorm:"not null;uniqueIndex"`
	OrderNo        string `gorm:"size:64;not null"`
	IdempotencyKey string `gorm:"size:96;not null;uniqueIndex"`
	CarrierCode    string `gorm:"size:32"`
	TrackingNo     string `gorm:"size:64"`
	Status         string `gorm:"size:16;not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShipmentModel) TableName() string {
	return "shipment"
}
