package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// DefaultFxMaxAge is how old a rate may be before it is considered stale
const DefaultFxMaxAge = 8 * time.Hour

// FxRate is the latest rate for a pair: 1 Base = Rate Quote
type FxRate struct {
	Base     string
	Quote    string
	Rate     decimal.Decimal
	AsOf     time.Time
	Provider string
}

// IdentityRate is the 1:1 rate of a currency with itself
func IdentityRate(code string, now time.Time) FxRate {
	return FxRate{Base: code, Quote: code, Rate: decimal.NewFromInt(1), AsOf: now, Provider: "identity"}
}

// IsFresh reports whether the rate was observed within maxAge of now
func (r FxRate) IsFresh(now time.Time, maxAge time.Duration) bool {
	if r.AsOf.IsZero() {
		return false
	}
	return now.Sub(r.AsOf) <= maxAge
}

// BaseToQuote converts a base-currency minor amount into quote minor units
func (r FxRate) BaseToQuote(baseCfg, quoteCfg valueobject.CurrencyConfig, baseMinor int64) (int64, error) {
	if !r.Rate.IsPositive() {
		return 0, shared.NewIllegalParamError("fx rate %s->%s is not positive", r.Base, r.Quote)
	}
	return quoteCfg.ToMinorRounded(baseCfg.ToMajor(baseMinor).Mul(r.Rate))
}

// QuoteToBase converts a quote-currency minor amount back into base minor units
func (r FxRate) QuoteToBase(baseCfg, quoteCfg valueobject.CurrencyConfig, quoteMinor int64) (int64, error) {
	if !r.Rate.IsPositive() {
		return 0, shared.NewIllegalParamError("fx rate %s->%s is not positive", r.Base, r.Quote)
	}
	return baseCfg.ToMinorRounded(quoteCfg.ToMajor(quoteMinor).DivRound(r.Rate, 18))
}

// FxRateProvider returns the latest known rate for a pair.
// A missing pair is reported as a NOT_FOUND domain error; staleness is judged by the caller.
type FxRateProvider interface {
	GetLatest(ctx context.Context, base, quote string) (FxRate, error)
}

// CurrencyConfigProvider resolves per-currency scale and rounding metadata
type CurrencyConfigProvider interface {
	Get(ctx context.Context, code string) (valueobject.CurrencyConfig, error)
}

// FxRateRepository stores the latest rate per pair
type FxRateRepository interface {
	FindLatest(ctx context.Context, base, quote string) (FxRate, error)
	FindLatestByQuotes(ctx context.Context, base string, quotes []string) (map[string]FxRate, error)
	UpsertLatest(ctx context.Context, rates []FxRate) error
}

// FxFeed fetches current rates from an external provider
type FxFeed interface {
	FetchLatest(ctx context.Context, base string, quotes []string) ([]FxRate, error)
}

// CurrencyRecord is the stored configuration of one currency
type CurrencyRecord struct {
	Code         string `json:"code"`
	MinorUnit    int    `json:"minor_unit"`
	RoundingMode string `json:"rounding_mode"`
	Enabled      bool   `json:"enabled"`
}

// CurrencyRepository reads currency configuration
type CurrencyRepository interface {
	FindByCode(ctx context.Context, code string) (*CurrencyRecord, error)
	ListEnabledCodes(ctx context.Context) ([]string, error)
}
