package pricing

import (
	"slices"
	"strings"
	"time"

	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// DeriveInput describes one FX derivation pass over a policy's amounts
type DeriveInput struct {
	BaseCurrency string
	// Requested are the entries supplied by the operator; the base entry is mandatory
	Requested []PolicyAmount
	// Existing are the entries currently persisted for the policy
	Existing []PolicyAmount
	Enabled  []string
	Rates    map[string]FxRate
	Configs  map[string]valueobject.CurrencyConfig
	Now      time.Time
	MaxAge   time.Duration
}

// DeriveResult is the full amount list plus currencies left without an entry
type DeriveResult struct {
	Amounts []PolicyAmount
	Skipped []string
}

// DeriveAmounts completes a policy's per-currency amounts. Requested and existing
// MANUAL entries win; every other enabled currency gets an FX_AUTO entry derived
// from the base entry when a fresh rate is known, and is skipped otherwise.
func DeriveAmounts(in DeriveInput) (DeriveResult, error) {
	base := strings.ToUpper(in.BaseCurrency)
	requested := make(map[string]PolicyAmount, len(in.Requested))
	for _, a := range in.Requested {
		a.Currency = strings.ToUpper(a.Currency)
		requested[a.Currency] = a
	}
	baseAmount, ok := requested[base]
	if !ok {
		return DeriveResult{}, shared.NewIllegalParamError("amounts must include the %s entry", base)
	}
	baseAmount.Source = AmountSourceManual
	baseAmount.DerivedFrom, baseAmount.FxRate, baseAmount.FxAsOf, baseAmount.FxProvider, baseAmount.ComputedAt = "", nil, nil, "", nil

	existing := make(map[string]PolicyAmount, len(in.Existing))
	for _, a := range in.Existing {
		existing[strings.ToUpper(a.Currency)] = a
	}
	cfgFor := func(code string) valueobject.CurrencyConfig {
		if c, ok := in.Configs[code]; ok {
			return c
		}
		return valueobject.DefaultCurrencyConfig(code)
	}

	out := DeriveResult{Amounts: []PolicyAmount{baseAmount}}
	for _, a := range in.Requested {
		c := strings.ToUpper(a.Currency)
		if c == base {
			continue
		}
		a.Currency = c
		a.Source = AmountSourceManual
		out.Amounts = append(out.Amounts, a)
	}

	enabled := make([]string, 0, len(in.Enabled))
	for _, c := range in.Enabled {
		enabled = append(enabled, strings.ToUpper(c))
	}
	slices.Sort(enabled)
	enabled = slices.Compact(enabled)

	for _, c := range enabled {
		if c == base {
			continue
		}
		if _, ok := requested[c]; ok {
			continue
		}
		if old, ok := existing[c]; ok && old.Source == AmountSourceManual {
			out.Amounts = append(out.Amounts, old)
			continue
		}
		rate, ok := in.Rates[c]
		if !ok || !rate.IsFresh(in.Now, in.MaxAge) {
			out.Skipped = append(out.Skipped, c)
			continue
		}
		derived, err := baseAmount.Synthesize(cfgFor(base), cfgFor(c), rate, in.Now)
		if err != nil {
			return DeriveResult{}, err
		}
		out.Amounts = append(out.Amounts, derived)
	}

	// Manual entries for currencies that are currently disabled survive untouched.
	for _, c := range sortedKeys(existing) {
		old := existing[c]
		if c == base || old.Source != AmountSourceManual || slices.Contains(enabled, c) {
			continue
		}
		if _, ok := requested[c]; ok {
			continue
		}
		out.Amounts = append(out.Amounts, old)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
