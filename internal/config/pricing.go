package config

import (
	"strings"
	"time"
)

// ModelPricing holds per-million-token prices for a model.
type ModelPricing struct {
	InputPerMTok        float64
	OutputPerMTok       float64
	CacheWrite5mPerMTok float64
	CacheWrite1hPerMTok float64
	CacheReadPerMTok    float64
}

// TokenCounts is the billable token breakdown of one record. CachedInput is
// the part of Input served from cache.
type TokenCounts struct {
	Input        int64
	CachedInput  int64
	CacheWrite5m int64
	CacheWrite1h int64
	Output       int64
}

// Cost returns the USD cost of tc at these rates.
func (p ModelPricing) Cost(tc TokenCounts) float64 {
	cached := min(tc.CachedInput, tc.Input)
	uncached := tc.Input - cached

	cost := float64(uncached) * p.InputPerMTok / 1_000_000
	cost += float64(cached) * p.CacheReadPerMTok / 1_000_000
	cost += float64(tc.CacheWrite5m) * p.CacheWrite5mPerMTok / 1_000_000
	cost += float64(tc.CacheWrite1h) * p.CacheWrite1hPerMTok / 1_000_000
	cost += float64(tc.Output) * p.OutputPerMTok / 1_000_000
	return cost
}

type modelPricingVersion struct {
	EffectiveFrom time.Time
	Pricing       ModelPricing
}

// DefaultPricing maps canonical model names to their pricing.
var DefaultPricing = map[string]ModelPricing{
	"claude-opus-4-6": {
		InputPerMTok: 5.00, OutputPerMTok: 25.00,
		CacheWrite5mPerMTok: 6.25, CacheWrite1hPerMTok: 10.00, CacheReadPerMTok: 0.50,
	},
	"claude-opus-4-5": {
		InputPerMTok: 5.00, OutputPerMTok: 25.00,
		CacheWrite5mPerMTok: 6.25, CacheWrite1hPerMTok: 10.00, CacheReadPerMTok: 0.50,
	},
	"claude-opus-4-1": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWrite5mPerMTok: 18.75, CacheWrite1hPerMTok: 30.00, CacheReadPerMTok: 1.50,
	},
	"claude-opus-4": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWrite5mPerMTok: 18.75, CacheWrite1hPerMTok: 30.00, CacheReadPerMTok: 1.50,
	},
	"claude-sonnet-4-6": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWrite5mPerMTok: 3.75, CacheWrite1hPerMTok: 6.00, CacheReadPerMTok: 0.30,
	},
	"claude-sonnet-4-5": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWrite5mPerMTok: 3.75, CacheWrite1hPerMTok: 6.00, CacheReadPerMTok: 0.30,
	},
	"claude-sonnet-4": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWrite5mPerMTok: 3.75, CacheWrite1hPerMTok: 6.00, CacheReadPerMTok: 0.30,
	},
	"claude-haiku-4-5": {
		InputPerMTok: 1.00, OutputPerMTok: 5.00,
		CacheWrite5mPerMTok: 1.25, CacheWrite1hPerMTok: 2.00, CacheReadPerMTok: 0.10,
	},
	"claude-haiku-3-5": {
		InputPerMTok: 0.80, OutputPerMTok: 4.00,
		CacheWrite5mPerMTok: 1.00, CacheWrite1hPerMTok: 1.60, CacheReadPerMTok: 0.08,
	},
	"gpt-5": {
		InputPerMTok: 1.25, OutputPerMTok: 10.00, CacheReadPerMTok: 0.125,
	},
	"gpt-5-mini": {
		InputPerMTok: 0.60, OutputPerMTok: 2.00, CacheReadPerMTok: 0.06,
	},
	"gpt-5-nano": {
		InputPerMTok: 0.20, OutputPerMTok: 0.80, CacheReadPerMTok: 0.02,
	},
}

// defaultPricingHistory stores effective-dated prices for each model.
// Entries must be sorted by EffectiveFrom ascending.
var defaultPricingHistory = makeDefaultPricingHistory(DefaultPricing)

func makeDefaultPricingHistory(base map[string]ModelPricing) map[string][]modelPricingVersion {
	history := make(map[string][]modelPricingVersion, len(base))
	for modelName, pricing := range base {
		history[modelName] = []modelPricingVersion{
			{Pricing: pricing},
		}
	}
	return history
}

func hasPricingModel(model string) bool {
	if _, ok := defaultPricingHistory[model]; ok {
		return true
	}
	_, ok := DefaultPricing[model]
	return ok
}

var routePrefixes = []string{"openrouter/openai/", "openai/", "azure/", "anthropic/"}

// NormalizeModelName maps a raw model identifier to its pricing-table name.
//
//	"claude-opus-4-5-20251101" -> "claude-opus-4-5"
//	"openai/gpt-5-codex"       -> "gpt-5"
//	"gpt-5-mini-2025-08-07"    -> "gpt-5-mini"
func NormalizeModelName(raw string) string {
	name := strings.TrimSpace(raw)
	for _, prefix := range routePrefixes {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			name = rest
			break
		}
	}
	if hasPricingModel(name) {
		return name
	}

	// Strip last segment if it looks like a date (all digits)
	parts := strings.Split(name, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if isAllDigits(last) && len(last) >= 8 {
			candidate := strings.Join(parts[:len(parts)-1], "-")
			if hasPricingModel(candidate) {
				return candidate
			}
		}
	}

	switch {
	case name == "gpt-5-codex":
		return "gpt-5"
	case strings.HasPrefix(name, "gpt-5-mini"):
		return "gpt-5-mini"
	case strings.HasPrefix(name, "gpt-5-nano"):
		return "gpt-5-nano"
	case strings.HasPrefix(name, "gpt-5"):
		return "gpt-5"
	}

	return name
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// PricingFunc looks up a model's rates at a point in time.
type PricingFunc func(model string, at time.Time) (ModelPricing, bool)

// LookupPricingAt returns the pricing for a model at the given timestamp.
// If at is zero, the latest known pricing entry is used.
func LookupPricingAt(model string, at time.Time) (ModelPricing, bool) {
	normalized := NormalizeModelName(model)
	versions, ok := defaultPricingHistory[normalized]
	if !ok || len(versions) == 0 {
		p, fallback := DefaultPricing[normalized]
		return p, fallback
	}

	if at.IsZero() {
		return versions[len(versions)-1].Pricing, true
	}

	at = at.UTC()
	selected := versions[0].Pricing
	for _, v := range versions {
		if v.EffectiveFrom.IsZero() || !at.Before(v.EffectiveFrom.UTC()) {
			selected = v.Pricing
			continue
		}
		break
	}
	return selected, true
}

// PricingOverrides allows user-defined pricing for specific models.
type PricingOverrides struct {
	Overrides map[string]ModelPricingOverride `toml:"overrides,omitempty"`
}

// ModelPricingOverride holds per-model pricing overrides.
type ModelPricingOverride struct {
	InputPerMTok        *float64 `toml:"input_per_mtok,omitempty"`
	OutputPerMTok       *float64 `toml:"output_per_mtok,omitempty"`
	CacheWrite5mPerMTok *float64 `toml:"cache_write_5m_per_mtok,omitempty"`
	CacheWrite1hPerMTok *float64 `toml:"cache_write_1h_per_mtok,omitempty"`
	CacheReadPerMTok    *float64 `toml:"cache_read_per_mtok,omitempty"`
}

func (o ModelPricingOverride) apply(p ModelPricing) ModelPricing {
	if o.InputPerMTok != nil {
		p.InputPerMTok = *o.InputPerMTok
	}
	if o.OutputPerMTok != nil {
		p.OutputPerMTok = *o.OutputPerMTok
	}
	if o.CacheWrite5mPerMTok != nil {
		p.CacheWrite5mPerMTok = *o.CacheWrite5mPerMTok
	}
	if o.CacheWrite1hPerMTok != nil {
		p.CacheWrite1hPerMTok = *o.CacheWrite1hPerMTok
	}
	if o.CacheReadPerMTok != nil {
		p.CacheReadPerMTok = *o.CacheReadPerMTok
	}
	return p
}

// PricingLookup returns the default table with the config's overrides
// layered on top. An override makes an otherwise unknown model known.
func (c Config) PricingLookup() PricingFunc {
	overrides := make(map[string]ModelPricingOverride, len(c.Pricing.Overrides))
	for name, o := range c.Pricing.Overrides {
		overrides[NormalizeModelName(name)] = o
	}
	return func(model string, at time.Time) (ModelPricing, bool) {
		base, ok := LookupPricingAt(model, at)
		if o, has := overrides[NormalizeModelName(model)]; has {
			return o.apply(base), true
		}
		return base, ok
	}
}
