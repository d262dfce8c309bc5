package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// DefaultCurrencyCacheTTL is how long a resolved currency configuration is reused
const DefaultCurrencyCacheTTL = 5 * time.Minute

// CurrencyCache is a shared cache of currency rows. Get returns nil, nil on a miss.
type CurrencyCache interface {
	Get(ctx context.Context, code string) (*pricing.CurrencyRecord, error)
	Set(ctx context.Context, rec pricing.CurrencyRecord, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

// CurrencyServiceConfig holds the dependencies of CurrencyConfigService
type CurrencyServiceConfig struct {
	Repo   pricing.CurrencyRepository
	Cache  CurrencyCache
	TTL    time.Duration
	Clock  shared.Clock
	Logger *zap.Logger
}

type cachedConfig struct {
	cfg     valueobject.CurrencyConfig
	expires time.Time
}

// CurrencyConfigService resolves minor-unit digits and rounding per currency.
// Reads go through an in-process map, then the shared cache, then the database.
type CurrencyConfigService struct {
	repo   pricing.CurrencyRepository
	cache  CurrencyCache
	ttl    time.Duration
	clock  shared.Clock
	logger *zap.Logger

	mu    sync.RWMutex
	local map[string]cachedConfig
	group singleflight.Group
}

// NewCurrencyConfigService creates a CurrencyConfigService
func NewCurrencyConfigService(cfg CurrencyServiceConfig) *CurrencyConfigService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCurrencyCacheTTL
	}
	return &CurrencyConfigService{
		repo:   cfg.Repo,
		cache:  cfg.Cache,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
		local:  make(map[string]cachedConfig),
	}
}

// Get returns the configuration of code. Unknown or disabled currencies fall back
// to the ISO default with HALF_UP rounding.
func (s *CurrencyConfigService) Get(ctx context.Context, code string) (valueobject.CurrencyConfig, error) {
	norm, err := valueobject.NormalizeCurrencyCode(code)
	if err != nil {
		return valueobject.CurrencyConfig{}, err
	}
	now := s.clock.Now()
	s.mu.RLock()
	hit, ok := s.local[norm]
	s.mu.RUnlock()
	if ok && now.Before(hit.expires) {
		return hit.cfg, nil
	}

	v, err, _ := s.group.Do(norm, func() (any, error) {
		return s.load(ctx, norm)
	})
	if err != nil {
		return valueobject.CurrencyConfig{}, err
	}
	cfg := v.(valueobject.CurrencyConfig)
	s.mu.Lock()
	s.local[norm] = cachedConfig{cfg: cfg, expires: now.Add(s.ttl)}
	s.mu.Unlock()
	return cfg, nil
}

func (s *CurrencyConfigService) load(ctx context.Context, code string) (valueobject.CurrencyConfig, error) {
	if s.cache != nil {
		rec, err := s.cache.Get(ctx, code)
		if err != nil {
			s.logger.Warn("currency cache read failed", zap.String("currency", code), zap.Error(err))
		} else if rec != nil {
			return s.fromRecord(code, rec), nil
		}
	}

	rec, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return valueobject.CurrencyConfig{}, err
		}
		rec = &pricing.CurrencyRecord{Code: code}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, *rec, s.ttl); err != nil {
			s.logger.Warn("currency cache write failed", zap.String("currency", code), zap.Error(err))
		}
	}
	return s.fromRecord(code, rec), nil
}

func (s *CurrencyConfigService) fromRecord(code string, rec *pricing.CurrencyRecord) valueobject.CurrencyConfig {
	if !rec.Enabled {
		return valueobject.DefaultCurrencyConfig(code)
	}
	mode, err := valueobject.ParseRoundingMode(rec.RoundingMode)
	if err != nil {
		s.logger.Warn("invalid rounding mode, using default",
			zap.String("currency", code), zap.String("rounding_mode", rec.RoundingMode))
		return valueobject.DefaultCurrencyConfig(code)
	}
	cfg, err := valueobject.NewCurrencyConfig(code, rec.MinorUnit, mode)
	if err != nil {
		s.logger.Warn("invalid currency row, using default", zap.String("currency", code), zap.Error(err))
		return valueobject.DefaultCurrencyConfig(code)
	}
	return cfg
}

// EnabledCurrencies lists the codes currently enabled for sale
func (s *CurrencyConfigService) EnabledCurrencies(ctx context.Context) ([]string, error) {
	return s.repo.ListEnabledCodes(ctx)
}

// Invalidate drops code from both cache levels
func (s *CurrencyConfigService) Invalidate(ctx context.Context, code string) {
	norm, err := valueobject.NormalizeCurrencyCode(code)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.local, norm)
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Delete(ctx, norm); err != nil {
			s.logger.Warn("currency cache delete failed", zap.String("currency", norm), zap.Error(err))
		}
	}
}
