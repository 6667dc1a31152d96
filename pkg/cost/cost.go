// Package cost implements C4: pricing lookup by (provider, model,
// effective date) and fixed-scale decimal cost computation.
package cost

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/beaconhq/pulse/pkg/span"
)

// decimalScale is the minimum number of fractional digits carried through
// every cost computation ("at least six fractional
// digits; no floating-point for monetary sums").
const decimalScale = 6

// table is the copy-on-write pricing table. Readers hold a reference to
// the version current when their evaluation started; a reload swaps the
// pointer atomically and never mutates an in-use table, mirroring
// pkg/config's Manager.
type table struct {
	// rows is keyed by (provider, model); within a key, rows are sorted by
	// EffectiveFrom ascending so lookup can binary-search or scan backward.
	rows map[string][]span.PricingRow
}

func rowKey(provider, model string) string {
	return provider + "\x00" + model
}

// Calculator looks up pricing rows and computes span costs.
type Calculator struct {
	current          atomic.Pointer[table]
	prefixModelMatch bool
}

// New constructs a Calculator. prefixModelMatch enables the longest-prefix
// fallback described in the design; it's disabled by default.
func New(prefixModelMatch bool) *Calculator {
	c := &Calculator{prefixModelMatch: prefixModelMatch}
	c.current.Store(&table{rows: map[string][]span.PricingRow{}})
	return c
}

// Reload atomically replaces the pricing table. In-flight evaluations
// started against the old table run to completion against it.
func (c *Calculator) Reload(rows []span.PricingRow) {
	t := &table{rows: make(map[string][]span.PricingRow)}
	for _, r := range rows {
		k := rowKey(r.Provider, normalizeModel(r.Model))
		t.rows[k] = append(t.rows[k], r)
	}
	c.current.Store(t)
}

func normalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

// Lookup returns the pricing row with maximal EffectiveFrom <= startTime
// whose DeprecatedAt is absent or strictly after startTime. ok is false on
// a miss ("no pricing"), which is never an error — see pulseerr.PricingMiss.
func (c *Calculator) Lookup(provider, model string, startTime time.Time) (span.PricingRow, bool) {
	t := c.current.Load()
	model = normalizeModel(model)

	if row, ok := bestRow(t.rows[rowKey(provider, model)], startTime); ok {
		return row, true
	}

	if !c.prefixModelMatch {
		return span.PricingRow{}, false
	}

	// Longest-prefix fallback: among all rows for this provider whose
	// model name is a prefix of the span's model string, pick the longest
	// matching model name, then apply the same effective-date selection.
	var bestCandidate []span.PricingRow
	bestLen := -1
	for key, rows := range t.rows {
		parts := strings.SplitN(key, "\x00", 2)
		if len(parts) != 2 || parts[0] != provider {
			continue
		}
		candidateModel := parts[1]
		if !strings.HasPrefix(model, candidateModel) {
			continue
		}
		if len(candidateModel) > bestLen {
			bestLen = len(candidateModel)
			bestCandidate = rows
		}
	}
	return bestRow(bestCandidate, startTime)
}

// bestRow selects, from rows sharing one (provider, model) key, the row
// with maximal EffectiveFrom <= at that isn't deprecated by at. Row keys
// guarantee at most one row per EffectiveFrom, so ties are impossible.
func bestRow(rows []span.PricingRow, at time.Time) (span.PricingRow, bool) {
	var best span.PricingRow
	found := false
	for _, r := range rows {
		if !r.AppliesAt(at) {
			continue
		}
		if !found || r.EffectiveFrom.After(best.EffectiveFrom) {
			best = r
			found = true
		}
	}
	return best, found
}

// Compute applies the pricing row to an LLM span's token counts, per
// this design's formulas. All arithmetic happens in fixed-scale decimal.
func Compute(row span.PricingRow, detail span.LLMDetail) span.Cost {
	thousand := decimal.NewFromInt(1000)

	input := decimal.NewFromInt(detail.InputTokens).DivRound(thousand, decimalScale).Mul(row.InputPer1K)
	output := decimal.NewFromInt(detail.OutputTokens).DivRound(thousand, decimalScale).Mul(row.OutputPer1K)

	reasoning := decimal.Zero
	if detail.ReasoningTokens != nil && row.ReasoningPer1K != nil {
		reasoning = decimal.NewFromInt(*detail.ReasoningTokens).DivRound(thousand, decimalScale).Mul(*row.ReasoningPer1K)
	}

	total := input.Add(output).Add(reasoning)

	return span.Cost{
		Input:     input.Round(decimalScale),
		Output:    output.Round(decimalScale),
		Reasoning: reasoning.Round(decimalScale),
		Total:     total.Round(decimalScale),
	}
}

// Apply looks up pricing for s and, on a hit, computes and attaches Cost.
// On a miss, s.Cost stays nil ("no pricing") and Apply reports false so
// callers can bump a PricingMiss counter; it is never an error.
func (c *Calculator) Apply(s *span.Span) bool {
	if s.LLM == nil {
		return true
	}
	row, ok := c.Lookup(s.LLM.Provider, s.LLM.Model, s.StartTime)
	if !ok {
		return false
	}
	cost := Compute(row, *s.LLM)
	s.Cost = &cost
	return true
}
