package persistence

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

// GormDiscountRepository implements pricing.DiscountAdminRepository using GORM
type GormDiscountRepository struct {
	db *gorm.DB
}

// NewGormDiscountRepository creates a new GormDiscountRepository
func NewGormDiscountRepository(db *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: db}
}

// FindCodeByText looks a code up by its normalized text
func (r *GormDiscountRepository) FindCodeByText(ctx context.Context, code string) (*pricing.Code, error) {
	text := pricing.NormalizeCodeText(code)
	var m models.DiscountCodeModel
	if err := r.db.WithContext(ctx).Where("code = ?", text).First(&m).Error; err != nil {
		return nil, translateError(err, "discount code "+text)
	}
	return m.ToDomain(), nil
}

// FindPolicyByID loads a policy with its per-currency amounts
func (r *GormDiscountRepository) FindPolicyByID(ctx context.Context, id int64) (*pricing.Policy, error) {
	var m models.DiscountPolicyModel
	if err := r.db.WithContext(ctx).
		Preload("Amounts", func(db *gorm.DB) *gorm.DB { return db.Order("currency") }).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translateError(err, "discount policy")
	}
	return m.ToDomain(), nil
}

// ListCodeProductIDs returns the product ids mapped onto a code
func (r *GormDiscountRepository) ListCodeProductIDs(ctx context.Context, codeID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.DiscountCodeProductModel{}).
		Where("discount_code_id = ?", codeID).
		Order("product_id").
		Pluck("product_id", &ids).Error
	return ids, err
}

// SavePolicy inserts a new policy or replaces an existing one with all its amounts
func (r *GormDiscountRepository) SavePolicy(ctx context.Context, p *pricing.Policy) error {
	var m models.DiscountPolicyModel
	m.FromDomain(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.ID == 0 {
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			p.ID = m.ID
			return nil
		}

		res := tx.Model(&models.DiscountPolicyModel{}).Where("id = ?", p.ID).
			Updates(map[string]any{
				"name":          m.Name,
				"apply_scope":   m.ApplyScope,
				"strategy_type": m.StrategyType,
				"percent_off":   m.PercentOff,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "discount policy")
		}
		if err := tx.Where("policy_id = ?", p.ID).Delete(&models.DiscountPolicyAmountModel{}).Error; err != nil {
			return err
		}
		if len(m.Amounts) == 0 {
			return nil
		}
		return tx.Create(&m.Amounts).Error
	})
}

// ListAmountPolicies pages through fixed-amount policies by id
func (r *GormDiscountRepository) ListAmountPolicies(ctx context.Context, afterID int64, limit int) ([]*pricing.Policy, error) {
	var rows []models.DiscountPolicyModel
	if err := r.db.WithContext(ctx).
		Preload("Amounts", func(db *gorm.DB) *gorm.DB { return db.Order("currency") }).
		Where("strategy_type = ? AND id > ?", string(pricing.StrategyAmount), afterID).
		Order("id").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*pricing.Policy, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// CreateCode inserts a code and its product mapping. A taken code text is a CONFLICT.
func (r *GormDiscountRepository) CreateCode(ctx context.Context, c *pricing.Code, productIDs []int64) error {
	var m models.DiscountCodeModel
	m.FromDomain(c)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return translateError(err, "discount code "+c.Code)
		}
		c.ID = m.ID
		if len(productIDs) == 0 {
			return nil
		}
		seen := make(map[int64]bool, len(productIDs))
		rows := make([]models.DiscountCodeProductModel, 0, len(productIDs))
		for _, id := range productIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			rows = append(rows, models.DiscountCodeProductModel{DiscountCodeID: m.ID, ProductID: id})
		}
		return tx.Create(&rows).Error
	})
}

// ListPolicies pages through policies by id with their amounts
func (r *GormDiscountRepository) ListPolicies(ctx context.Context, f pricing.PolicyFilter) ([]*pricing.Policy, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.StrategyType != "" {
			db = db.Where("strategy_type = ?", string(f.StrategyType))
		}
		if f.Name != "" {
			db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.DiscountPolicyModel{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.DiscountPolicyModel
	if err := r.db.WithContext(ctx).Scopes(filter).
		Preload("Amounts", func(db *gorm.DB) *gorm.DB { return db.Order("currency") }).
		Order("id").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*pricing.Policy, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// DeletePolicy removes an unused policy with its amounts
func (r *GormDiscountRepository) DeletePolicy(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var codes int64
		if err := tx.Model(&models.DiscountCodeModel{}).Where("policy_id = ?", id).Count(&codes).Error; err != nil {
			return err
		}
		if codes > 0 {
			return shared.NewConflictError("discount policy %d is used by %d codes", id, codes)
		}
		if err := tx.Where("policy_id = ?", id).Delete(&models.DiscountPolicyAmountModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.DiscountPolicyModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "discount policy")
		}
		return nil
	})
}

// FindCodeByID loads a code by id
func (r *GormDiscountRepository) FindCodeByID(ctx context.Context, id int64) (*pricing.Code, error) {
	var m models.DiscountCodeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateError(err, "discount code")
	}
	return m.ToDomain(), nil
}

// ListCodes pages through codes by id
func (r *GormDiscountRepository) ListCodes(ctx context.Context, f pricing.CodeFilter) ([]*pricing.Code, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.PolicyID > 0 {
			db = db.Where("policy_id = ?", f.PolicyID)
		}
		if f.Code != "" {
			db = db.Where("code LIKE ?", pricing.NormalizeCodeText(f.Code)+"%")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.DiscountCodeModel{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.DiscountCodeModel
	if err := r.db.WithContext(ctx).Scopes(filter).
		Order("id").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*pricing.Code, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// UpdateCode writes the editable fields of a code. Text and scope mode are not touched.
func (r *GormDiscountRepository) UpdateCode(ctx context.Context, c *pricing.Code) error {
	var m models.DiscountCodeModel
	m.FromDomain(c)
	res := r.db.WithContext(ctx).Model(&models.DiscountCodeModel{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"policy_id":  m.PolicyID,
			"name":       m.Name,
			"expires_at": m.ExpiresAt,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "discount code")
	}
	return nil
}

// ReplaceCodeProducts sets the scope mode and replaces the product mapping in one transaction
func (r *GormDiscountRepository) ReplaceCodeProducts(ctx context.Context, codeID int64, mode pricing.ScopeMode, productIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DiscountCodeModel{}).
			Where("id = ?", codeID).
			Updates(map[string]any{"scope_mode": string(mode), "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "discount code")
		}
		if err := tx.Where("discount_code_id = ?", codeID).Delete(&models.DiscountCodeProductModel{}).Error; err != nil {
			return err
		}
		if len(productIDs) == 0 {
			return nil
		}
		rows := make([]models.DiscountCodeProductModel, 0, len(productIDs))
		for _, id := range productIDs {
			rows = append(rows, models.DiscountCodeProductModel{DiscountCodeID: codeID, ProductID: id})
		}
		return tx.Create(&rows).Error
	})
}

// DeleteCode removes a code no order has used, with its product mapping
func (r *GormDiscountRepository) DeleteCode(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var used int64
		if err := tx.Model(&models.OrderModel{}).Where("discount_code_id = ?", id).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return shared.NewConflictError("discount code %d was used by %d orders", id, used)
		}
		if err := tx.Where("discount_code_id = ?", id).Delete(&models.DiscountCodeProductModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.DiscountCodeModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "discount code")
		}
		return nil
	})
}
