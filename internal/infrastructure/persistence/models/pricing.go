package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/intlshop/backend/internal/domain/pricing"
)

// CurrencyModel is the configuration of one currency
type CurrencyModel struct {
	Code         string `gorm:"primaryKey;size:3"`
	MinorUnit    int    `gorm:"not null"`
	RoundingMode string `gorm:"size:16;not null"`
	Enabled      bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (CurrencyModel) TableName() string {
	return "currency"
}

// ToDomain converts the row to a currency record
func (m *CurrencyModel) ToDomain() *pricing.CurrencyRecord {
	return &pricing.CurrencyRecord{
		Code:         m.Code,
		MinorUnit:    m.MinorUnit,
		RoundingMode: m.RoundingMode,
		Enabled:      m.Enabled,
	}
}

// FxRateLatestModel holds the newest rate per pair
type FxRateLatestModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	BaseCode  string          `gorm:"size:3;not null;uniqueIndex:uk_fx_latest_pair,priority:1"`
	QuoteCode string          `gorm:"size:3;not null;uniqueIndex:uk_fx_latest_pair,priority:2"`
	Rate      decimal.Decimal `gorm:"type:decimal(24,10);not null"`
	AsOf      time.Time       `gorm:"not null"`
	Provider  string          `gorm:"size:64;not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (FxRateLatestModel) TableName() string {
	return "fx_rate_latest"
}

// FxRateHistoryModel is an append-only record of every fetched rate
type FxRateHistoryModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	BaseCode  string          `gorm:"size:3;not null;index:idx_fx_rate_pair,priority:1"`
	QuoteCode string          `gorm:"size:3;not null;index:idx_fx_rate_pair,priority:2"`
	Rate      decimal.Decimal `gorm:"type:decimal(24,10);not null"`
	AsOf      time.Time       `gorm:"not null;index:idx_fx_rate_pair,priority:3"`
	Provider  string          `gorm:"size:64;not null"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (FxRateHistoryModel) TableName() string {
	return "fx_rate"
}

// NewFxRateLatest maps a domain rate
func NewFxRateLatest(r pricing.FxRate) FxRateLatestModel {
	return FxRateLatestModel{
		BaseCode:  r.Base,
		QuoteCode: r.Quote,
		Rate:      r.Rate,
		AsOf:      r.AsOf,
		Provider:  r.Provider,
	}
}

// ToDomain converts the row to a domain rate
func (m *FxRateLatestModel) ToDomain() pricing.FxRate {
	return pricing.FxRate{Base: m.BaseCode, Quote: m.QuoteCode, Rate: m.Rate, AsOf: m.AsOf, Provider: m.Provider}
}

// DiscountPolicyModel is a discount policy
type DiscountPolicyModel struct {
	ID           int64            `gorm:"primaryKey;autoIncrement"`
	Name         string           `gorm:"size:120;not null"`
	ApplyScope   string           `gorm:"size:16;not null"`
	StrategyType string           `gorm:"size:16;not null;index"`
	PercentOff   *decimal.Decimal `gorm:"type:decimal(5,2)"`
	CreatedAt    time.Time        `gorm:"not null"`
	UpdatedAt    time.Time        `gorm:"not null"`

	Amounts []DiscountPolicyAmountModel `gorm:"foreignKey:PolicyID"`
}

// TableName returns the table name for GORM
func (DiscountPolicyModel) TableName() string {
	return "discount_policy"
}

// DiscountPolicyAmountModel is the per-currency configuration of a policy
type DiscountPolicyAmountModel struct {
	ID                int64            `gorm:"primaryKey;autoIncrement"`
	PolicyID          int64            `gorm:"not null;uniqueIndex:uk_policy_currency,priority:1"`
	Currency          string           `gorm:"size:3;not null;uniqueIndex:uk_policy_currency,priority:2"`
	AmountOff         *int64
	MinOrderAmount    *int64
	MaxDiscountAmount *int64
	AmountSource      string           `gorm:"size:16;not null"`
	DerivedFrom       string           `gorm:"size:3"`
	FxRate            *decimal.Decimal `gorm:"type:decimal(24,10)"`
	FxAsOf            *time.Time
	FxProvider        string `gorm:"size:64"`
	ComputedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name for GORM
func (DiscountPolicyAmountModel) TableName() string {
	return "discount_policy_amount"
}

// FromDomain maps a policy and its amounts
func (m *DiscountPolicyModel) FromDomain(p *pricing.Policy) {
	m.ID = p.ID
	m.Name = p.Name
	m.ApplyScope = string(p.ApplyScope)
	m.StrategyType = string(p.StrategyType)
	m.PercentOff = p.PercentOff
	m.Amounts = make([]DiscountPolicyAmountModel, len(p.Amounts))
	for i, a := range p.Amounts {
		m.Amounts[i] = DiscountPolicyAmountModel{
			PolicyID:          p.ID,
			Currency:          a.Currency,
			AmountOff:         a.AmountOffMinor,
			MinOrderAmount:    a.MinOrderAmountMinor,
			MaxDiscountAmount: a.MaxDiscountAmountMinor,
			AmountSource:      string(a.Source),
			DerivedFrom:       a.DerivedFrom,
			FxRate:            a.FxRate,
			FxAsOf:            a.FxAsOf,
			FxProvider:        a.FxProvider,
			ComputedAt:        a.ComputedAt,
		}
	}
}

// ToDomain converts the policy and its amounts
func (m *DiscountPolicyModel) ToDomain() *pricing.Policy {
	p := &pricing.Policy{
		ID:           m.ID,
		Name:         m.Name,
		ApplyScope:   pricing.ApplyScope(m.ApplyScope),
		StrategyType: pricing.StrategyType(m.StrategyType),
		PercentOff:   m.PercentOff,
	}
	for _, a := range m.Amounts {
		p.Amounts = append(p.Amounts, pricing.PolicyAmount{
			Currency:               a.Currency,
			AmountOffMinor:         a.AmountOff,
			MinOrderAmountMinor:    a.MinOrderAmount,
			MaxDiscountAmountMinor: a.MaxDiscountAmount,
			Source:                 pricing.AmountSource(a.AmountSource),
			DerivedFrom:            a.DerivedFrom,
			FxRate:                 a.FxRate,
			FxAsOf:                 a.FxAsOf,
			FxProvider:             a.FxProvider,
			ComputedAt:             a.ComputedAt,
		})
	}
	return p
}

// DiscountCodeModel is a redeemable code
type DiscountCodeModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Code      string `gorm:"size:32;not null;uniqueIndex"`
	PolicyID  int64  `gorm:"not null;index"`
	Name      string `gorm:"size:120"`
	ScopeMode string `gorm:"size:16;not null"`
	ExpiresAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DiscountCodeModel) TableName() string {
	return "discount_code"
}

// FromDomain maps a code
func (m *DiscountCodeModel) FromDomain(c *pricing.Code) {
	m.ID = c.ID
	m.Code = c.Code
	m.PolicyID = c.PolicyID
	m.Name = c.Name
	m.ScopeMode = string(c.ScopeMode)
	m.ExpiresAt = nil
	if !c.ExpiresAt.IsZero() {
		at := c.ExpiresAt
		m.ExpiresAt = &at
	}
}

// ToDomain converts the row to a code
func (m *DiscountCodeModel) ToDomain() *pricing.Code {
	c := &pricing.Code{
		ID:        m.ID,
		Code:      m.Code,
		PolicyID:  m.PolicyID,
		Name:      m.Name,
		ScopeMode: pricing.ScopeMode(m.ScopeMode),
	}
	if m.ExpiresAt != nil {
		c.ExpiresAt = *m.ExpiresAt
	}
	return c
}

// DiscountCodeProductModel maps a code onto the products its scope mode includes or excludes
type DiscountCodeProductModel struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	DiscountCodeID int64 `gorm:"not null;uniqueIndex:uk_code_product,priority:1"`
	ProductID      int64 `gorm:"not null;uniqueIndex:uk_code_product,priority:2"`
	CreatedAt      time.Time
}

// TableName returns the table name for GORM
func (DiscountCodeProductModel) TableName() string {
	return "discount_code_product"
}
