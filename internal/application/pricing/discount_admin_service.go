package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

const (
	defaultRecomputeBatch = 100
	maxRecomputeBatch     = 500
)

// CurrencyDirectory is the currency read side the admin service needs
type CurrencyDirectory interface {
	Get(ctx context.Context, code string) (valueobject.CurrencyConfig, error)
	EnabledCurrencies(ctx context.Context) ([]string, error)
}

// DiscountAdminConfig holds the dependencies of DiscountAdminService
type DiscountAdminConfig struct {
	Repo         pricing.DiscountAdminRepository
	Rates        pricing.FxRateRepository
	Currencies   CurrencyDirectory
	BaseCurrency string
	FxMaxAge     time.Duration
	Clock        shared.Clock
	Logger       *zap.Logger
}

// UpsertPolicyCommand creates (ID == 0) or replaces a policy
type UpsertPolicyCommand struct {
	ID           int64
	Name         string
	ApplyScope   pricing.ApplyScope
	StrategyType pricing.StrategyType
	PercentOff   *decimal.Decimal
	Amounts      []pricing.PolicyAmount
}

// PolicyResult is the saved policy plus the enabled currencies left without an entry
type PolicyResult struct {
	Policy  *pricing.Policy
	Skipped []string
}

// CreateCodeCommand creates a discount code
type CreateCodeCommand struct {
	Code       string
	PolicyID   int64
	Name       string
	ScopeMode  pricing.ScopeMode
	ProductIDs []int64
	ExpiresAt  time.Time
}

// RecomputeReport summarizes one FX recompute pass
type RecomputeReport struct {
	Policies int
	Updated  int
	Skipped  int
}

// DiscountAdminService manages discount policies and codes
type DiscountAdminService struct {
	repo       pricing.DiscountAdminRepository
	rates      pricing.FxRateRepository
	currencies CurrencyDirectory
	base       string
	maxAge     time.Duration
	clock      shared.Clock
	logger     *zap.Logger
}

// NewDiscountAdminService creates a DiscountAdminService
func NewDiscountAdminService(cfg DiscountAdminConfig) *DiscountAdminService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	base := strings.ToUpper(cfg.BaseCurrency)
	if base == "" {
		base = "USD"
	}
	maxAge := cfg.FxMaxAge
	if maxAge <= 0 {
		maxAge = pricing.DefaultFxMaxAge
	}
	return &DiscountAdminService{
		repo:       cfg.Repo,
		rates:      cfg.Rates,
		currencies: cfg.Currencies,
		base:       base,
		maxAge:     maxAge,
		clock:      clock,
		logger:     logger,
	}
}

// UpsertPolicy validates the command, derives FX_AUTO entries for enabled
// currencies without a manual entry and saves the policy.
func (s *DiscountAdminService) UpsertPolicy(ctx context.Context, cmd UpsertPolicyCommand) (*PolicyResult, error) {
	p := &pricing.Policy{
		ID:           cmd.ID,
		Name:         strings.TrimSpace(cmd.Name),
		ApplyScope:   cmd.ApplyScope,
		StrategyType: cmd.StrategyType,
		PercentOff:   cmd.PercentOff,
		Amounts:      cmd.Amounts,
	}
	for i := range p.Amounts {
		p.Amounts[i].Source = pricing.AmountSourceManual
	}
	if err := p.Validate(s.base); err != nil {
		return nil, err
	}

	var existing []pricing.PolicyAmount
	if cmd.ID > 0 {
		old, err := s.repo.FindPolicyByID(ctx, cmd.ID)
		if err != nil {
			return nil, err
		}
		existing = old.Amounts
	}

	var skipped []string
	if _, ok := p.AmountFor(s.base); ok {
		derived, err := s.derive(ctx, p.Amounts, existing)
		if err != nil {
			return nil, err
		}
		p.Amounts, skipped = derived.Amounts, derived.Skipped
		if err := p.Validate(s.base); err != nil {
			return nil, err
		}
	}

	if err := s.repo.SavePolicy(ctx, p); err != nil {
		return nil, fmt.Errorf("save discount policy: %w", err)
	}
	if len(skipped) > 0 {
		s.logger.Warn("policy saved without fx entries",
			zap.Int64("policy_id", p.ID), zap.Strings("currencies", skipped))
	}
	s.logger.Info("discount policy saved",
		zap.Int64("policy_id", p.ID),
		zap.String("strategy", string(p.StrategyType)),
		zap.Int("amounts", len(p.Amounts)))
	return &PolicyResult{Policy: p, Skipped: skipped}, nil
}

// CreateCode creates a code bound to an existing policy
func (s *DiscountAdminService) CreateCode(ctx context.Context, cmd CreateCodeCommand) (*pricing.Code, error) {
	c := &pricing.Code{
		Code:      cmd.Code,
		PolicyID:  cmd.PolicyID,
		Name:      strings.TrimSpace(cmd.Name),
		ScopeMode: cmd.ScopeMode,
		ExpiresAt: cmd.ExpiresAt,
	}
	if c.ScopeMode == "" {
		c.ScopeMode = pricing.ScopeAll
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(s.clock.Now()) {
		return nil, shared.NewIllegalParamError("expiresAt must be in the future")
	}
	productIDs := dedupeIDs(cmd.ProductIDs)
	if c.ScopeMode != pricing.ScopeAll && len(productIDs) == 0 {
		return nil, shared.NewIllegalParamError("scope mode %s requires product ids", c.ScopeMode)
	}
	if c.ScopeMode == pricing.ScopeAll {
		productIDs = nil
	}
	if _, err := s.repo.FindPolicyByID(ctx, c.PolicyID); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCode(ctx, c, productIDs); err != nil {
		return nil, err
	}
	s.logger.Info("discount code created", zap.String("code", c.Code), zap.Int64("policy_id", c.PolicyID))
	return c, nil
}

// RecomputeFxAmountsAll rebuilds the FX_AUTO entries of every policy that has a
// base entry from the latest rates. MANUAL entries are never rewritten.
func (s *DiscountAdminService) RecomputeFxAmountsAll(ctx context.Context, batch int) (RecomputeReport, error) {
	if batch <= 0 {
		batch = defaultRecomputeBatch
	}
	batch = min(batch, maxRecomputeBatch)

	var report RecomputeReport
	var afterID int64
	for {
		policies, err := s.repo.ListAmountPolicies(ctx, afterID, batch)
		if err != nil {
			return report, fmt.Errorf("list policies: %w", err)
		}
		if len(policies) == 0 {
			return report, nil
		}
		for _, p := range policies {
			afterID = max(afterID, p.ID)
			report.Policies++
			base, ok := p.AmountFor(s.base)
			if !ok {
				continue
			}
			derived, err := s.derive(ctx, []pricing.PolicyAmount{base}, p.Amounts)
			if err != nil {
				s.logger.Warn("fx recompute failed", zap.Int64("policy_id", p.ID), zap.Error(err))
				report.Skipped++
				continue
			}
			p.Amounts = derived.Amounts
			if err := s.repo.SavePolicy(ctx, p); err != nil {
				s.logger.Warn("fx recompute save failed", zap.Int64("policy_id", p.ID), zap.Error(err))
				report.Skipped++
				continue
			}
			report.Updated++
		}
		if len(policies) < batch {
			return report, nil
		}
	}
}

func (s *DiscountAdminService) derive(ctx context.Context, requested, existing []pricing.PolicyAmount) (pricing.DeriveResult, error) {
	enabled, err := s.currencies.EnabledCurrencies(ctx)
	if err != nil {
		return pricing.DeriveResult{}, fmt.Errorf("list enabled currencies: %w", err)
	}
	quotes := make([]string, 0, len(enabled))
	configs := make(map[string]valueobject.CurrencyConfig, len(enabled)+1)
	for _, code := range append([]string{s.base}, enabled...) {
		code = strings.ToUpper(code)
		if _, done := configs[code]; done {
			continue
		}
		cfg, err := s.currencies.Get(ctx, code)
		if err != nil {
			return pricing.DeriveResult{}, err
		}
		configs[code] = cfg
		if code != s.base {
			quotes = append(quotes, code)
		}
	}
	rates := map[string]pricing.FxRate{}
	if len(quotes) > 0 {
		rates, err = s.rates.FindLatestByQuotes(ctx, s.base, quotes)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return pricing.DeriveResult{}, fmt.Errorf("load fx rates: %w", err)
		}
	}
	return pricing.DeriveAmounts(pricing.DeriveInput{
		BaseCurrency: s.base,
		Requested:    requested,
		Existing:     existing,
		Enabled:      enabled,
		Rates:        rates,
		Configs:      configs,
		Now:          s.clock.Now(),
		MaxAge:       s.maxAge,
	})
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
