package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupShopTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// seedSku creates an active product with one SKU holding stock, priced in USD
func seedSku(t *testing.T, db *gorm.DB, stock int64, priceUSD int64) int64 {
	t.Helper()
	p := models.ProductModel{Title: "Travel Mug", CoverImageURL: "https://cdn.example/mug.png", Status: statusActive}
	require.NoError(t, db.Create(&p).Error)
	sku := models.SkuModel{
		ProductID: p.ID,
		SkuCode:   fmt.Sprintf("MUG-%d", p.ID),
		Attrs:     `{"color":"blue"}`,
		Stock:     stock,
		Status:    statusActive,
	}
	require.NoError(t, db.Create(&sku).Error)
	price := models.SkuPriceModel{SkuID: sku.ID, Currency: "USD", SalePrice: priceUSD, IsActive: true}
	require.NoError(t, db.Create(&price).Error)
	return sku.ID
}

func loadSku(t *testing.T, db *gorm.DB, id int64) models.SkuModel {
	t.Helper()
	var m models.SkuModel
	require.NoError(t, db.First(&m, id).Error)
	return m
}

func newTestOrder(t *testing.T, orderNo string, userID int64, lines map[int64]int64) (*order.Order, order.StatusLog) {
	t.Helper()
	items := make([]order.Item, 0, len(lines))
	for sku, qty := range lines {
		items = append(items, order.Item{ProductID: 1, SkuID: sku, Title: "Travel Mug", UnitPrice: 1250, Quantity: qty})
	}
	o, log, err := order.New(order.CreateParams{
		OrderNo:  orderNo,
		UserID:   userID,
		Source:   order.SourceDirect,
		Currency: "USD",
		Items:    items,
		Address: order.AddressSnapshot{
			ReceiverName: "Ada Lovelace",
			Phone:        "+44 20 7946 0000",
			Country:      "GB",
			City:         "London",
			AddressLine1: "12 St James's Square",
		},
		Now: testNow,
	})
	require.NoError(t, err)
	return o, log
}

// createTestOrder persists a PENDING_PAYMENT order reserving qty of sku
func createTestOrder(t *testing.T, db *gorm.DB, orderNo string, sku, qty int64) *order.Order {
	t.Helper()
	o, log := newTestOrder(t, orderNo, 7, map[int64]int64{sku: qty})
	require.NoError(t, NewGormOrderRepository(db).CreateOrderAndReserveStock(t.Context(), o, log, nil))
	return o
}
