// Package fx fetches exchange rates from an HTTP rate provider.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/infrastructure/config"
)

// latestResponse is the provider payload: {"base":"USD","timestamp":<unix>,"rates":{"EUR":"0.91"}}
type latestResponse struct {
	Base      string                     `json:"base"`
	Timestamp int64                      `json:"timestamp"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

// HTTPFeed implements pricing.FxFeed over the configured provider
type HTTPFeed struct {
	endpoint   string
	apiKey     string
	provider   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPFeed creates a feed. The provider name recorded on rates is the endpoint host.
func NewHTTPFeed(cfg config.FXConfig, logger *zap.Logger) (*HTTPFeed, error) {
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("fx: provider url is required")
	}
	u, err := url.Parse(cfg.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("fx: invalid provider url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFeed{
		endpoint:   cfg.ProviderURL,
		apiKey:     cfg.APIKey,
		provider:   u.Host,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// FetchLatest returns base -> quote rates for the requested quotes. Quotes the
// provider does not know are left out of the result.
func (f *HTTPFeed) FetchLatest(ctx context.Context, base string, quotes []string) ([]pricing.FxRate, error) {
	q := url.Values{}
	q.Set("base", base)
	q.Set("symbols", strings.Join(quotes, ","))
	target := f.endpoint
	if strings.Contains(target, "?") {
		target += "&" + q.Encode()
	} else {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fx: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("apikey", f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewGatewayError(err, "fx: provider request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, shared.NewGatewayError(err, "fx: failed to read provider response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewGatewayError(nil, "fx: provider answered HTTP %d", resp.StatusCode)
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, shared.NewGatewayError(err, "fx: failed to parse provider response")
	}
	if !strings.EqualFold(payload.Base, base) {
		return nil, shared.NewGatewayError(nil, "fx: provider returned base %q, want %q", payload.Base, base)
	}
	if payload.Timestamp <= 0 {
		return nil, shared.NewGatewayError(nil, "fx: provider response has no timestamp")
	}
	asOf := time.Unix(payload.Timestamp, 0).UTC()

	out := make([]pricing.FxRate, 0, len(quotes))
	for _, quote := range quotes {
		rate, ok := payload.Rates[strings.ToUpper(quote)]
		if !ok {
			f.logger.Warn("fx provider has no rate", zap.String("base", base), zap.String("quote", quote))
			continue
		}
		out = append(out, pricing.FxRate{
			Base:     strings.ToUpper(base),
			Quote:    strings.ToUpper(quote),
			Rate:     rate,
			AsOf:     asOf,
			Provider: f.provider,
		})
	}
	return out, nil
}

var _ pricing.FxFeed = (*HTTPFeed)(nil)
