package persistence

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// GormCurrencyRepository implements pricing.CurrencyRepository using GORM
type GormCurrencyRepository struct {
	db *gorm.DB
}

// NewGormCurrencyRepository creates a new GormCurrencyRepository
func NewGormCurrencyRepository(db *gorm.DB) *GormCurrencyRepository {
	return &GormCurrencyRepository{db: db}
}

// FindByCode loads one currency, enabled or not
func (r *GormCurrencyRepository) FindByCode(ctx context.Context, code string) (*pricing.CurrencyRecord, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var m models.CurrencyModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, translateError(err, "currency "+code)
	}
	return m.ToDomain(), nil
}

// ListEnabledCodes returns the enabled currency codes in alphabetical order
func (r *GormCurrencyRepository) ListEnabledCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&models.CurrencyModel{}).
		Where("enabled = ?", true).
		Order("code").
		Pluck("code", &codes).Error
	return codes, err
}
