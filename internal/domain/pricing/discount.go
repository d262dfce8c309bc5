package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// ApplyScope selects whether a discount is computed on the order or per line
type ApplyScope string

const (
	ApplyScopeOrder ApplyScope = "ORDER"
	ApplyScopeItem  ApplyScope = "ITEM"
)

// StrategyType selects percent-off or fixed amount-off
type StrategyType string

const (
	StrategyPercent StrategyType = "PERCENT"
	StrategyAmount  StrategyType = "AMOUNT"
)

// ScopeMode maps a code onto products
type ScopeMode string

const (
	ScopeAll     ScopeMode = "ALL"
	ScopeInclude ScopeMode = "INCLUDE"
	ScopeExclude ScopeMode = "EXCLUDE"
)

// AmountSource tells whether a per-currency entry was typed in or derived from FX
type AmountSource string

const (
	AmountSourceManual AmountSource = "MANUAL"
	AmountSourceFxAuto AmountSource = "FX_AUTO"
)

const maxPolicyNameLength = 120

// PolicyAmount is the per-currency configuration of a policy, in that currency's minor units
type PolicyAmount struct {
	Currency               string
	AmountOffMinor         *int64
	MinOrderAmountMinor    *int64
	MaxDiscountAmountMinor *int64
	Source                 AmountSource
	DerivedFrom            string
	FxRate                 *decimal.Decimal
	FxAsOf                 *time.Time
	FxProvider             string
	ComputedAt             *time.Time
}

// Policy is a discount policy
type Policy struct {
	ID           int64
	Name         string
	ApplyScope   ApplyScope
	StrategyType StrategyType
	PercentOff   *decimal.Decimal
	Amounts      []PolicyAmount
}

// AmountFor returns the explicit entry for currency, if any
func (p *Policy) AmountFor(currency string) (PolicyAmount, bool) {
	c := strings.ToUpper(currency)
	for _, a := range p.Amounts {
		if a.Currency == c {
			return a, true
		}
	}
	return PolicyAmount{}, false
}

// Validate checks the policy invariants against the accounting base currency
func (p *Policy) Validate(baseCurrency string) error {
	name := strings.TrimSpace(p.Name)
	if name == "" || len([]rune(name)) > maxPolicyNameLength {
		return shared.NewIllegalParamError("policy name must be 1-%d characters", maxPolicyNameLength)
	}
	if p.ApplyScope != ApplyScopeOrder && p.ApplyScope != ApplyScopeItem {
		return shared.NewIllegalParamError("invalid apply scope %q", p.ApplyScope)
	}
	seen := make(map[string]struct{}, len(p.Amounts))
	for i := range p.Amounts {
		a := &p.Amounts[i]
		code, err := valueobject.NormalizeCurrencyCode(a.Currency)
		if err != nil {
			return err
		}
		a.Currency = code
		if _, dup := seen[code]; dup {
			return shared.NewIllegalParamError("duplicate amount entry for %s", code)
		}
		seen[code] = struct{}{}
		if err := a.validateNonNegative(); err != nil {
			return err
		}
		if a.Source == "" {
			a.Source = AmountSourceManual
		}
	}

	switch p.StrategyType {
	case StrategyPercent:
		if p.PercentOff == nil || !p.PercentOff.IsPositive() || p.PercentOff.GreaterThan(decimal.NewFromInt(100)) {
			return shared.NewIllegalParamError("percentOff must be in (0, 100]")
		}
		for _, a := range p.Amounts {
			if a.AmountOffMinor != nil {
				return shared.NewIllegalParamError("percent policy cannot carry amountOff for %s", a.Currency)
			}
		}
	case StrategyAmount:
		if p.PercentOff != nil {
			return shared.NewIllegalParamError("amount policy cannot carry percentOff")
		}
		base, ok := p.AmountFor(baseCurrency)
		if !ok || base.AmountOffMinor == nil {
			return shared.NewIllegalParamError("amount policy requires a %s amountOff entry", baseCurrency)
		}
		for _, a := range p.Amounts {
			if a.AmountOffMinor == nil || *a.AmountOffMinor <= 0 {
				return shared.NewIllegalParamError("amountOff for %s must be positive", a.Currency)
			}
		}
	default:
		return shared.NewIllegalParamError("invalid strategy type %q", p.StrategyType)
	}
	return nil
}

func (a PolicyAmount) validateNonNegative() error {
	for _, v := range []*int64{a.AmountOffMinor, a.MinOrderAmountMinor, a.MaxDiscountAmountMinor} {
		if v != nil && *v < 0 {
			return shared.NewIllegalParamError("amounts for %s must not be negative", a.Currency)
		}
	}
	return nil
}

// Synthesize derives the quote-currency entry from this (base) entry and a rate,
// rounding each amount with the quote currency's rules
func (a PolicyAmount) Synthesize(baseCfg, quoteCfg valueobject.CurrencyConfig, rate FxRate, at time.Time) (PolicyAmount, error) {
	conv := func(v *int64) (*int64, error) {
		if v == nil {
			return nil, nil
		}
		out, err := rate.BaseToQuote(baseCfg, quoteCfg, *v)
		if err != nil {
			return nil, err
		}
		return &out, nil
	}
	var out PolicyAmount
	var err error
	if out.AmountOffMinor, err = conv(a.AmountOffMinor); err != nil {
		return PolicyAmount{}, err
	}
	if out.MinOrderAmountMinor, err = conv(a.MinOrderAmountMinor); err != nil {
		return PolicyAmount{}, err
	}
	if out.MaxDiscountAmountMinor, err = conv(a.MaxDiscountAmountMinor); err != nil {
		return PolicyAmount{}, err
	}
	r := rate.Rate
	asOf := rate.AsOf
	out.Currency = quoteCfg.Code()
	out.Source = AmountSourceFxAuto
	out.DerivedFrom = baseCfg.Code()
	out.FxRate = &r
	out.FxAsOf = &asOf
	out.FxProvider = rate.Provider
	out.ComputedAt = &at
	return out, nil
}

// Code is a redeemable discount code bound to one policy
type Code struct {
	ID        int64
	Code      string
	PolicyID  int64
	Name      string
	ScopeMode ScopeMode
	ExpiresAt time.Time
}

// NormalizeCodeText trims and upper-cases user input
func NormalizeCodeText(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsExpired reports whether the code can no longer be redeemed at now
func (c *Code) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Validate checks a code before it is created
func (c *Code) Validate() error {
	c.Code = NormalizeCodeText(c.Code)
	if len(c.Code) < 4 || len(c.Code) > 32 {
		return shared.NewIllegalParamError("discount code must be 4-32 characters")
	}
	for _, r := range c.Code {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return shared.NewIllegalParamError("discount code contains invalid character %q", r)
		}
	}
	switch c.ScopeMode {
	case ScopeAll, ScopeInclude, ScopeExclude:
	default:
		return shared.NewIllegalParamError("invalid scope mode %q", c.ScopeMode)
	}
	if c.PolicyID <= 0 {
		return shared.NewIllegalParamError("policyId is required")
	}
	return nil
}

// DiscountRepository is the read side the engine needs
type DiscountRepository interface {
	FindCodeByText(ctx context.Context, code string) (*Code, error)
	FindPolicyByID(ctx context.Context, id int64) (*Policy, error)
	ListCodeProductIDs(ctx context.Context, codeID int64) ([]int64, error)
}

// PolicyFilter pages through policies
type PolicyFilter struct {
	StrategyType StrategyType
	Name         string
	Offset       int
	Limit        int
}

// CodeFilter pages through codes
type CodeFilter struct {
	PolicyID int64
	Code     string
	Offset   int
	Limit    int
}

// DiscountAdminRepository persists policies and codes
type DiscountAdminRepository interface {
	DiscountRepository
	SavePolicy(ctx context.Context, p *Policy) error
	ListAmountPolicies(ctx context.Context, afterID int64, limit int) ([]*Policy, error)
	ListPolicies(ctx context.Context, f PolicyFilter) ([]*Policy, int64, error)
	// DeletePolicy removes a policy and its amounts. A policy still bound to a code is a CONFLICT.
	DeletePolicy(ctx context.Context, id int64) error

	CreateCode(ctx context.Context, c *Code, productIDs []int64) error
	FindCodeByID(ctx context.Context, id int64) (*Code, error)
	ListCodes(ctx context.Context, f CodeFilter) ([]*Code, int64, error)
	UpdateCode(ctx context.Context, c *Code) error
	// ReplaceCodeProducts sets the scope mode and swaps the whole product mapping
	ReplaceCodeProducts(ctx context.Context, codeID int64, mode ScopeMode, productIDs []int64) error
	// DeleteCode removes a code and its product mapping. A code orders already used is a CONFLICT.
	DeleteCode(ctx context.Context, id int64) error
}
