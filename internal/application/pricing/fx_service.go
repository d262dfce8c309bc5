package pricing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// FxServiceConfig holds the dependencies of FxRateService
type FxServiceConfig struct {
	Repo         pricing.FxRateRepository
	Feed         pricing.FxFeed
	Currencies   pricing.CurrencyRepository
	BaseCurrency string
	Clock        shared.Clock
	Logger       *zap.Logger
}

// FxRateService serves the latest stored rates and refreshes them from the feed
type FxRateService struct {
	repo       pricing.FxRateRepository
	feed       pricing.FxFeed
	currencies pricing.CurrencyRepository
	base       string
	clock      shared.Clock
	logger     *zap.Logger
}

// NewFxRateService creates an FxRateService
func NewFxRateService(cfg FxServiceConfig) *FxRateService {
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
	return &FxRateService{
		repo:       cfg.Repo,
		feed:       cfg.Feed,
		currencies: cfg.Currencies,
		base:       base,
		clock:      clock,
		logger:     logger,
	}
}

// GetLatest returns the stored rate base -> quote. A same-currency pair is the
// identity rate; a missing pair is NOT_FOUND. Freshness is left to the caller.
func (s *FxRateService) GetLatest(ctx context.Context, base, quote string) (pricing.FxRate, error) {
	b, err := valueobject.NormalizeCurrencyCode(base)
	if err != nil {
		return pricing.FxRate{}, err
	}
	q, err := valueobject.NormalizeCurrencyCode(quote)
	if err != nil {
		return pricing.FxRate{}, err
	}
	if b == q {
		return pricing.IdentityRate(b, s.clock.Now()), nil
	}
	return s.repo.FindLatest(ctx, b, q)
}

// SyncLatest fetches rates for every enabled currency and upserts them.
// It returns the number of pairs written.
func (s *FxRateService) SyncLatest(ctx context.Context) (int, error) {
	if s.feed == nil {
		return 0, shared.NewGatewayError(nil, "fx feed is not configured")
	}
	codes, err := s.currencies.ListEnabledCodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled currencies: %w", err)
	}
	quotes := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(c); c != s.base {
			quotes = append(quotes, c)
		}
	}
	if len(quotes) == 0 {
		return 0, nil
	}

	fetched, err := s.feed.FetchLatest(ctx, s.base, quotes)
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		wanted[q] = true
	}
	rates := make([]pricing.FxRate, 0, len(fetched))
	for _, r := range fetched {
		if !strings.EqualFold(r.Base, s.base) || !wanted[strings.ToUpper(r.Quote)] || !r.Rate.IsPositive() {
			s.logger.Warn("discarding fx rate", zap.String("base", r.Base), zap.String("quote", r.Quote),
				zap.String("rate", r.Rate.String()))
			continue
		}
		r.Base, r.Quote = s.base, strings.ToUpper(r.Quote)
		rates = append(rates, r)
	}
	if len(rates) == 0 {
		return 0, nil
	}
	if err := s.repo.UpsertLatest(ctx, rates); err != nil {
		return 0, fmt.Errorf("store fx rates: %w", err)
	}
	s.logger.Info("fx rates synced", zap.String("base", s.base), zap.Int("pairs", len(rates)))
	return len(rates), nil
}

// BaseCurrency is the accounting currency rates are quoted against
func (s *FxRateService) BaseCurrency() string {
	return s.base
}
