package span

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingRow is an immutable row keyed by (provider, model, effective date).
// Rows are loaded at startup and on explicit reload; never mutated in place
// (see pkg/config's copy-on-write Manager for the analogous pattern this
// table reuses).
type PricingRow struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`

	EffectiveFrom time.Time  `json:"effective_from"`
	DeprecatedAt  *time.Time `json:"deprecated_at,omitempty"` // nil means never deprecated

	InputPer1K     decimal.Decimal  `json:"input_per_1k"`
	OutputPer1K    decimal.Decimal  `json:"output_per_1k"`
	ReasoningPer1K *decimal.Decimal `json:"reasoning_per_1k,omitempty"` // nil means reasoning tokens don't participate in cost
	CacheReadPer1K *decimal.Decimal `json:"cache_read_per_1k,omitempty"`
}

// AppliesAt reports whether this row is the candidate for a span starting
// at t: effective on or before t, and not yet deprecated as of t.
func (r PricingRow) AppliesAt(t time.Time) bool {
	if r.EffectiveFrom.After(t) {
		return false
	}
	if r.DeprecatedAt != nil && !r.DeprecatedAt.After(t) {
		return false
	}
	return true
}
