package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// Line is one priced order line presented to the engine
type Line struct {
	SkuID         int64
	ProductID     int64
	Quantity      int64
	SubtotalMinor int64
}

// Request asks for the discount of a set of lines in one currency
type Request struct {
	Currency string
	Code     string
	Lines    []Line
}

// LineDiscount is the discount attributed to one line in ITEM scope
type LineDiscount struct {
	SkuID       int64
	AmountMinor int64
}

// Applied is one accounting record of a deducted discount
type Applied struct {
	DiscountCodeID  int64
	Scope           ApplyScope
	SkuID           *int64
	Currency        string
	AmountMinor     int64
	BaseCurrency    string
	BaseAmountMinor int64
	FxRate          *decimal.Decimal
	FxAsOf          *time.Time
	FxProvider      string
}

// Computation is a successfully applied discount
type Computation struct {
	DiscountAmountMinor int64
	DiscountCodeID      int64
	EligibleSkuIDs      map[int64]bool
	Lines               []LineDiscount
	Applied             []Applied
}

// None is the computation for an order without a code
func None() Computation {
	return Computation{}
}

// Outcome is the engine's result type
type Outcome = shared.Result[Computation, Failure]

// EngineConfig holds the engine's tunables
type EngineConfig struct {
	BaseCurrency string
	FxMaxAge     time.Duration
}

// Engine resolves codes and computes discounts
type Engine struct {
	repo       DiscountRepository
	fx         FxRateProvider
	currencies CurrencyConfigProvider
	clock      shared.Clock
	cfg        EngineConfig
}

// NewEngine creates a discount engine
func NewEngine(repo DiscountRepository, fx FxRateProvider, currencies CurrencyConfigProvider, clock shared.Clock, cfg EngineConfig) *Engine {
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "USD"
	}
	cfg.BaseCurrency = strings.ToUpper(cfg.BaseCurrency)
	if cfg.FxMaxAge <= 0 {
		cfg.FxMaxAge = DefaultFxMaxAge
	}
	return &Engine{repo: repo, fx: fx, currencies: currencies, clock: clock, cfg: cfg}
}

// BaseCurrency returns the accounting currency
func (e *Engine) BaseCurrency() string {
	return e.cfg.BaseCurrency
}

// Compute prices the discount for req. Soft failures come back as a failed
// Outcome; the error return is reserved for infrastructure faults.
func (e *Engine) Compute(ctx context.Context, req Request) (Outcome, error) {
	text := NormalizeCodeText(req.Code)
	if text == "" {
		return shared.Ok[Computation, Failure](None()), nil
	}
	currency := strings.ToUpper(req.Currency)
	now := e.clock.Now()

	code, err := e.repo.FindCodeByText(ctx, text)
	if shared.IsNotFound(err) {
		return failed(fail(FailureCodeNotFound, "discount code %s does not exist", text)), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if code.IsExpired(now) {
		return failed(fail(FailureCodeExpired, "discount code %s expired at %s", text, code.ExpiresAt.Format(time.RFC3339))), nil
	}
	policy, err := e.repo.FindPolicyByID(ctx, code.PolicyID)
	if shared.IsNotFound(err) {
		return failed(fail(FailurePolicyNotFound, "policy %d of code %s is missing", code.PolicyID, text)), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	quoteCfg, err := e.currencies.Get(ctx, currency)
	if err != nil {
		return Outcome{}, err
	}

	// One rate covers both amount synthesis and the accounting snapshot.
	var rate *FxRate
	var baseCfg valueobject.CurrencyConfig
	if currency != e.cfg.BaseCurrency {
		r, err := e.fx.GetLatest(ctx, e.cfg.BaseCurrency, currency)
		switch {
		case shared.IsNotFound(err):
			return failed(fail(FailureFxRateUnavailable, "no fx rate %s->%s", e.cfg.BaseCurrency, currency)), nil
		case err != nil:
			return Outcome{}, err
		}
		rate = &r
		if baseCfg, err = e.currencies.Get(ctx, e.cfg.BaseCurrency); err != nil {
			return Outcome{}, err
		}
	}

	amountCfg, failure, err := e.resolveAmount(policy, currency, quoteCfg, baseCfg, rate, now)
	if err != nil {
		return Outcome{}, err
	}
	if failure != nil {
		return failed(*failure), nil
	}
	if policy.StrategyType == StrategyAmount && (amountCfg == nil || amountCfg.AmountOffMinor == nil) {
		return failed(fail(FailureAmountConfigMissing, "policy %d has no amount for %s", policy.ID, currency)), nil
	}

	eligible, err := e.eligibleLines(ctx, code, req.Lines)
	if err != nil {
		return Outcome{}, err
	}
	if len(eligible) == 0 {
		return failed(fail(FailureNotApplicable, "code %s does not apply to these products", text)), nil
	}

	var eligibleTotal int64
	for _, l := range eligible {
		eligibleTotal += l.SubtotalMinor
	}
	if amountCfg != nil && amountCfg.MinOrderAmountMinor != nil && eligibleTotal < *amountCfg.MinOrderAmountMinor {
		return failed(fail(FailureMinOrderNotMet, "eligible subtotal %d below minimum %d %s", eligibleTotal, *amountCfg.MinOrderAmountMinor, currency)), nil
	}

	comp := Computation{
		DiscountCodeID: code.ID,
		EligibleSkuIDs: make(map[int64]bool, len(eligible)),
	}
	for _, l := range eligible {
		comp.EligibleSkuIDs[l.SkuID] = true
	}

	acct := accounting{codeID: code.ID, quoteCfg: quoteCfg, baseCfg: baseCfg, base: e.cfg.BaseCurrency, rate: rate}
	if policy.ApplyScope == ApplyScopeOrder {
		raw, err := rawDiscount(policy, amountCfg, quoteCfg, eligibleTotal, 1, false)
		if err != nil {
			return Outcome{}, err
		}
		amount := capDiscount(raw, eligibleTotal, amountCfg)
		rec, err := acct.record(ApplyScopeOrder, nil, amount)
		if err != nil {
			return Outcome{}, err
		}
		comp.DiscountAmountMinor = amount
		comp.Applied = append(comp.Applied, rec)
		return shared.Ok[Computation, Failure](comp), nil
	}

	lines := make([]LineDiscount, 0, len(eligible))
	for _, l := range eligible {
		raw, err := rawDiscount(policy, amountCfg, quoteCfg, l.SubtotalMinor, l.Quantity, true)
		if err != nil {
			return Outcome{}, err
		}
		lines = append(lines, LineDiscount{SkuID: l.SkuID, AmountMinor: capDiscount(raw, l.SubtotalMinor, amountCfg)})
	}
	if amountCfg != nil && amountCfg.MaxDiscountAmountMinor != nil {
		lines = RedistributeCap(lines, *amountCfg.MaxDiscountAmountMinor)
	}
	for _, ld := range lines {
		sku := ld.SkuID
		rec, err := acct.record(ApplyScopeItem, &sku, ld.AmountMinor)
		if err != nil {
			return Outcome{}, err
		}
		comp.DiscountAmountMinor += ld.AmountMinor
		comp.Applied = append(comp.Applied, rec)
	}
	comp.Lines = lines
	return shared.Ok[Computation, Failure](comp), nil
}

func failed(f Failure) Outcome {
	return shared.Fail[Computation, Failure](f)
}

// resolveAmount picks the explicit entry for currency or synthesizes one from the base entry
func (e *Engine) resolveAmount(p *Policy, currency string, quoteCfg, baseCfg valueobject.CurrencyConfig, rate *FxRate, now time.Time) (*PolicyAmount, *Failure, error) {
	if a, ok := p.AmountFor(currency); ok {
		return &a, nil, nil
	}
	base, ok := p.AmountFor(e.cfg.BaseCurrency)
	if !ok || currency == e.cfg.BaseCurrency {
		return nil, nil, nil
	}
	if rate == nil {
		f := fail(FailureFxRateUnavailable, "no fx rate %s->%s", e.cfg.BaseCurrency, currency)
		return nil, &f, nil
	}
	if !rate.IsFresh(now, e.cfg.FxMaxAge) {
		f := fail(FailureFxRateStale, "fx rate %s->%s as of %s is older than %s", rate.Base, rate.Quote, rate.AsOf.Format(time.RFC3339), e.cfg.FxMaxAge)
		return nil, &f, nil
	}
	synth, err := base.Synthesize(baseCfg, quoteCfg, *rate, now)
	if err != nil {
		return nil, nil, err
	}
	return &synth, nil, nil
}

func (e *Engine) eligibleLines(ctx context.Context, code *Code, lines []Line) ([]Line, error) {
	if code.ScopeMode == ScopeAll || code.ScopeMode == "" {
		return lines, nil
	}
	ids, err := e.repo.ListCodeProductIDs(ctx, code.ID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if set[l.ProductID] == (code.ScopeMode == ScopeInclude) {
			out = append(out, l)
		}
	}
	return out, nil
}

// rawDiscount is the uncapped discount on base. AMOUNT in ITEM scope is per unit.
func rawDiscount(p *Policy, a *PolicyAmount, cfg valueobject.CurrencyConfig, base, quantity int64, perLine bool) (int64, error) {
	if p.StrategyType == StrategyPercent {
		return cfg.RoundMinor(decimal.NewFromInt(base).Mul(*p.PercentOff).Div(decimal.NewFromInt(100)))
	}
	off := cfg.Money(*a.AmountOffMinor)
	if perLine {
		m, err := off.Multiply(quantity)
		if err != nil {
			return 0, err
		}
		return m.AmountMinor(), nil
	}
	return off.AmountMinor(), nil
}

// capDiscount clamps raw into [0, base] and to the configured maximum
func capDiscount(raw, base int64, a *PolicyAmount) int64 {
	v := max(min(raw, base), 0)
	if a != nil && a.MaxDiscountAmountMinor != nil && v > *a.MaxDiscountAmountMinor {
		v = *a.MaxDiscountAmountMinor
	}
	return v
}

// RedistributeCap trims per-line discounts so their sum does not exceed maxTotal,
// consuming the cap greedily in line order
func RedistributeCap(lines []LineDiscount, maxTotal int64) []LineDiscount {
	var sum int64
	for _, l := range lines {
		sum += l.AmountMinor
	}
	if sum <= maxTotal {
		return lines
	}
	remaining := max(maxTotal, 0)
	out := make([]LineDiscount, len(lines))
	for i, l := range lines {
		use := min(l.AmountMinor, remaining)
		out[i] = LineDiscount{SkuID: l.SkuID, AmountMinor: use}
		remaining -= use
	}
	return out
}

type accounting struct {
	codeID   int64
	base     string
	quoteCfg valueobject.CurrencyConfig
	baseCfg  valueobject.CurrencyConfig
	rate     *FxRate
}

func (a accounting) record(scope ApplyScope, sku *int64, amount int64) (Applied, error) {
	rec := Applied{
		DiscountCodeID:  a.codeID,
		Scope:           scope,
		SkuID:           sku,
		Currency:        a.quoteCfg.Code(),
		AmountMinor:     amount,
		BaseCurrency:    a.base,
		BaseAmountMinor: amount,
	}
	if a.rate == nil {
		return rec, nil
	}
	baseMinor, err := a.rate.QuoteToBase(a.baseCfg, a.quoteCfg, amount)
	if err != nil {
		return Applied{}, err
	}
	r := a.rate.Rate
	asOf := a.rate.AsOf
	rec.BaseAmountMinor = baseMinor
	rec.FxRate = &r
	rec.FxAsOf = &asOf
	rec.FxProvider = a.rate.Provider
	return rec, nil
}
