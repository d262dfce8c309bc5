package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// GormFxRateRepository implements pricing.FxRateRepository using GORM.
// fx_rate_latest keeps one row per pair; fx_rate keeps every observation.
type GormFxRateRepository struct {
	db *gorm.DB
}

// NewGormFxRateRepository creates a new GormFxRateRepository
func NewGormFxRateRepository(db *gorm.DB) *GormFxRateRepository {
	return &GormFxRateRepository{db: db}
}

// FindLatest returns the stored rate for base->quote
func (r *GormFxRateRepository) FindLatest(ctx context.Context, base, quote string) (pricing.FxRate, error) {
	var m models.FxRateLatestModel
	if err := r.db.WithContext(ctx).
		Where("base_code = ? AND quote_code = ?", base, quote).
		First(&m).Error; err != nil {
		return pricing.FxRate{}, translateError(err, "fx rate "+base+"->"+quote)
	}
	return m.ToDomain(), nil
}

// FindLatestByQuotes returns the stored rates of base against quotes, keyed by quote.
// Missing pairs are absent from the map.
func (r *GormFxRateRepository) FindLatestByQuotes(ctx context.Context, base string, quotes []string) (map[string]pricing.FxRate, error) {
	out := make(map[string]pricing.FxRate, len(quotes))
	if len(quotes) == 0 {
		return out, nil
	}
	var rows []models.FxRateLatestModel
	if err := r.db.WithContext(ctx).
		Where("base_code = ? AND quote_code IN ?", base, quotes).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].QuoteCode] = rows[i].ToDomain()
	}
	return out, nil
}

// UpsertLatest replaces the latest rate of each pair and appends the history rows
func (r *GormFxRateRepository) UpsertLatest(ctx context.Context, rates []pricing.FxRate) error {
	if len(rates) == 0 {
		return nil
	}
	latest := make([]models.FxRateLatestModel, len(rates))
	history := make([]models.FxRateHistoryModel, len(rates))
	for i, rate := range rates {
		latest[i] = models.NewFxRateLatest(rate)
		history[i] = models.FxRateHistoryModel{
			BaseCode:  rate.Base,
			QuoteCode: rate.Quote,
			Rate:      rate.Rate,
			AsOf:      rate.AsOf,
			Provider:  rate.Provider,
		}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "base_code"}, {Name: "quote_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "as_of", "provider", "updated_at"}),
		}).Create(&latest).Error; err != nil {
			return err
		}
		return tx.Create(&history).Error
	})
}
