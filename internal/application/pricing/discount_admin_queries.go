package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a 1-based page request
type Page struct {
	Page     int
	PageSize int
}

// Normalized clamps the page to sane bounds
func (p Page) Normalized() Page {
	size := p.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	return Page{Page: max(p.Page, 1), PageSize: min(size, maxPageSize)}
}

func (p Page) bounds() (offset, limit int) {
	n := p.Normalized()
	return (n.Page - 1) * n.PageSize, n.PageSize
}

// PolicyQuery filters the policy list
type PolicyQuery struct {
	Page
	StrategyType pricing.StrategyType
	Name         string
}

// CodeQuery filters the code list
type CodeQuery struct {
	Page
	PolicyID int64
	Code     string
}

// PatchPolicyCommand changes the fields that are set. Nil Amounts keeps the
// MANUAL entries and re-derives the FX_AUTO ones.
type PatchPolicyCommand struct {
	Name         *string
	ApplyScope   *pricing.ApplyScope
	StrategyType *pricing.StrategyType
	PercentOff   *decimal.Decimal
	Amounts      []pricing.PolicyAmount
}

// PatchCodeCommand changes the fields that are set
type PatchCodeCommand struct {
	Name        *string
	PolicyID    *int64
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// CodeProducts is a code with its scope mode and product mapping
type CodeProducts struct {
	Code       *pricing.Code
	ProductIDs []int64
}

// ListPolicies pages through discount policies
func (s *DiscountAdminService) ListPolicies(ctx context.Context, q PolicyQuery) ([]*pricing.Policy, int64, error) {
	offset, limit := q.bounds()
	return s.repo.ListPolicies(ctx, pricing.PolicyFilter{
		StrategyType: q.StrategyType,
		Name:         strings.TrimSpace(q.Name),
		Offset:       offset,
		Limit:        limit,
	})
}

// PatchPolicy applies a partial update through the same validation and FX
// derivation as UpsertPolicy
func (s *DiscountAdminService) PatchPolicy(ctx context.Context, id int64, cmd PatchPolicyCommand) (*PolicyResult, error) {
	old, err := s.repo.FindPolicyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upsert := UpsertPolicyCommand{
		ID:           id,
		Name:         old.Name,
		ApplyScope:   old.ApplyScope,
		StrategyType: old.StrategyType,
		PercentOff:   old.PercentOff,
		Amounts:      cmd.Amounts,
	}
	if cmd.Name != nil {
		upsert.Name = *cmd.Name
	}
	if cmd.ApplyScope != nil {
		upsert.ApplyScope = *cmd.ApplyScope
	}
	if cmd.StrategyType != nil {
		upsert.StrategyType = *cmd.StrategyType
	}
	if cmd.PercentOff != nil {
		upsert.PercentOff = cmd.PercentOff
	}
	if upsert.StrategyType == pricing.StrategyAmount {
		upsert.PercentOff = nil
	}
	if cmd.Amounts == nil {
		for _, a := range old.Amounts {
			if a.Source == pricing.AmountSourceManual {
				upsert.Amounts = append(upsert.Amounts, a)
			}
		}
	}
	return s.UpsertPolicy(ctx, upsert)
}

// DeletePolicy removes a policy no code is bound to
func (s *DiscountAdminService) DeletePolicy(ctx context.Context, id int64) error {
	if err := s.repo.DeletePolicy(ctx, id); err != nil {
		return err
	}
	s.logger.Info("discount policy deleted", zap.Int64("policy_id", id))
	return nil
}

// ListCodes pages through discount codes
func (s *DiscountAdminService) ListCodes(ctx context.Context, q CodeQuery) ([]*pricing.Code, int64, error) {
	offset, limit := q.bounds()
	return s.repo.ListCodes(ctx, pricing.CodeFilter{
		PolicyID: q.PolicyID,
		Code:     strings.TrimSpace(q.Code),
		Offset:   offset,
		Limit:    limit,
	})
}

// PatchCode changes the name, policy or expiry of a code
func (s *DiscountAdminService) PatchCode(ctx context.Context, id int64, cmd PatchCodeCommand) (*pricing.Code, error) {
	c, err := s.repo.FindCodeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		c.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.PolicyID != nil && *cmd.PolicyID != c.PolicyID {
		if _, err := s.repo.FindPolicyByID(ctx, *cmd.PolicyID); err != nil {
			return nil, err
		}
		c.PolicyID = *cmd.PolicyID
	}
	switch {
	case cmd.ClearExpiry:
		c.ExpiresAt = time.Time{}
	case cmd.ExpiresAt != nil:
		if !cmd.ExpiresAt.After(s.clock.Now()) {
			return nil, shared.NewIllegalParamError("expiresAt must be in the future")
		}
		c.ExpiresAt = *cmd.ExpiresAt
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCode(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("discount code updated", zap.String("code", c.Code), zap.Int64("policy_id", c.PolicyID))
	return c, nil
}

// DeleteCode removes a code no order has used
func (s *DiscountAdminService) DeleteCode(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCode(ctx, id); err != nil {
		return err
	}
	s.logger.Info("discount code deleted", zap.Int64("code_id", id))
	return nil
}

// CodeProducts returns the scope mode and product mapping of a code
func (s *DiscountAdminService) CodeProducts(ctx context.Context, id int64) (*CodeProducts, error) {
	c, err := s.repo.FindCodeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.ListCodeProductIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CodeProducts{Code: c, ProductIDs: ids}, nil
}

// ReplaceCodeProducts sets the scope mode of a code and replaces its product
// set. ALL drops the mapping; INCLUDE and EXCLUDE need at least one product.
func (s *DiscountAdminService) ReplaceCodeProducts(ctx context.Context, id int64, mode pricing.ScopeMode, productIDs []int64) (*CodeProducts, error) {
	switch mode {
	case pricing.ScopeAll:
		productIDs = nil
	case pricing.ScopeInclude, pricing.ScopeExclude:
		productIDs = dedupeIDs(productIDs)
		if len(productIDs) == 0 {
			return nil, shared.NewIllegalParamError("scope mode %s requires product ids", mode)
		}
	default:
		return nil, shared.NewIllegalParamError("invalid scope mode %q", mode)
	}
	if err := s.repo.ReplaceCodeProducts(ctx, id, mode, productIDs); err != nil {
		return nil, err
	}
	s.logger.Info("discount code products replaced",
		zap.Int64("code_id", id), zap.String("scope_mode", string(mode)), zap.Int("products", len(productIDs)))
	return s.CodeProducts(ctx, id)
}
