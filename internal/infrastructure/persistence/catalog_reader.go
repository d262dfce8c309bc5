package persistence

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

const statusActive = "ACTIVE"

// GormCatalogReader reads live SKU data and cart lines for order creation
type GormCatalogReader struct {
	db *gorm.DB
}

// NewGormCatalogReader creates a new GormCatalogReader
func NewGormCatalogReader(db *gorm.DB) *GormCatalogReader {
	return &GormCatalogReader{db: db}
}

// ListSaleSnapshots returns the sellable SKUs among skuIDs with their price in currency.
// Inactive SKUs and products are left out; UnitPriceMinor is nil when no active price exists.
func (r *GormCatalogReader) ListSaleSnapshots(ctx context.Context, skuIDs []int64, currency string) (map[int64]order.SkuSnapshot, error) {
	out := make(map[int64]order.SkuSnapshot, len(skuIDs))
	if len(skuIDs) == 0 {
		return out, nil
	}
	db := r.db.WithContext(ctx)

	var skus []models.SkuModel
	if err := db.Where("id IN ? AND status = ?", skuIDs, statusActive).Find(&skus).Error; err != nil {
		return nil, err
	}
	if len(skus) == 0 {
		return out, nil
	}
	productIDs := make([]int64, 0, len(skus))
	for _, s := range skus {
		productIDs = append(productIDs, s.ProductID)
	}

	var products []models.ProductModel
	if err := db.Where("id IN ? AND status = ?", productIDs, statusActive).Find(&products).Error; err != nil {
		return nil, err
	}
	byProduct := make(map[int64]models.ProductModel, len(products))
	for _, p := range products {
		byProduct[p.ID] = p
	}

	var prices []models.SkuPriceModel
	if err := db.Where("sku_id IN ? AND currency = ? AND is_active = ?", skuIDs, strings.ToUpper(currency), true).
		Find(&prices).Error; err != nil {
		return nil, err
	}
	priceBySku := make(map[int64]int64, len(prices))
	for _, p := range prices {
		priceBySku[p.SkuID] = p.SalePrice
	}

	for _, s := range skus {
		p, ok := byProduct[s.ProductID]
		if !ok {
			continue
		}
		snap := order.SkuSnapshot{
			SkuID:         s.ID,
			ProductID:     s.ProductID,
			Title:         p.Title,
			SkuAttrs:      s.Attrs,
			CoverImageURL: p.CoverImageURL,
			Stock:         s.Stock,
		}
		if price, ok := priceBySku[s.ID]; ok {
			snap.UnitPriceMinor = &price
		}
		out[s.ID] = snap
	}
	return out, nil
}

// ListSelected returns the user's selected cart lines
func (r *GormCatalogReader) ListSelected(ctx context.Context, userID int64) ([]order.CartLine, error) {
	var rows []models.CartItemModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND selected = ?", userID, true).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]order.CartLine, len(rows))
	for i, row := range rows {
		out[i] = order.CartLine{ID: row.ID, SkuID: row.SkuID, Quantity: row.Quantity}
	}
	return out, nil
}
