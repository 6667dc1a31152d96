package cost_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/pulse/pkg/cost"
	"github.com/beaconhq/pulse/pkg/span"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLookupExactMatch(t *testing.T) {
	c := cost.New(false)
	eff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Reload([]span.PricingRow{
		{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", EffectiveFrom: eff, InputPer1K: dec("0.003"), OutputPer1K: dec("0.015")},
	})

	row, ok := c.Lookup("anthropic", "claude-3-5-sonnet-20241022", eff.Add(24*time.Hour))
	require.True(t, ok)
	assert.True(t, row.InputPer1K.Equal(dec("0.003")))
}

func TestLookupMiss(t *testing.T) {
	c := cost.New(false)
	_, ok := c.Lookup("openai", "future-model-x", time.Now())
	assert.False(t, ok)
}

func TestLookupSelectsMaximalEffectiveDateNotAfterStart(t *testing.T) {
	c := cost.New(false)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.Reload([]span.PricingRow{
		{Provider: "openai", Model: "gpt-4o", EffectiveFrom: older, InputPer1K: dec("0.005"), OutputPer1K: dec("0.015")},
		{Provider: "openai", Model: "gpt-4o", EffectiveFrom: newer, InputPer1K: dec("0.0025"), OutputPer1K: dec("0.01")},
	})

	row, ok := c.Lookup("openai", "gpt-4o", newer.Add(-time.Hour))
	require.True(t, ok)
	assert.True(t, row.InputPer1K.Equal(dec("0.005")), "should select the older row before the newer one's effective date")

	row, ok = c.Lookup("openai", "gpt-4o", newer)
	require.True(t, ok)
	assert.True(t, row.InputPer1K.Equal(dec("0.0025")), "effective_date == start_date selects that row")
}

func TestLookupRespectsDeprecation(t *testing.T) {
	c := cost.New(false)
	eff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dep := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.Reload([]span.PricingRow{
		{Provider: "openai", Model: "gpt-4o", EffectiveFrom: eff, DeprecatedAt: &dep, InputPer1K: dec("0.005"), OutputPer1K: dec("0.015")},
	})

	_, ok := c.Lookup("openai", "gpt-4o", dep)
	assert.False(t, ok, "start_date == deprecated_date must not select the row")

	_, ok = c.Lookup("openai", "gpt-4o", dep.Add(-time.Second))
	assert.True(t, ok)
}

func TestLookupPrefixFallbackWhenEnabled(t *testing.T) {
	c := cost.New(true)
	eff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Reload([]span.PricingRow{
		{Provider: "anthropic", Model: "claude-3-5-sonnet", EffectiveFrom: eff, InputPer1K: dec("0.003"), OutputPer1K: dec("0.015")},
	})

	_, ok := cost.New(false).Lookup("anthropic", "claude-3-5-sonnet-20241022", eff.Add(time.Hour))
	assert.False(t, ok, "fallback must stay disabled by default")

	row, ok := c.Lookup("anthropic", "claude-3-5-sonnet-20241022", eff.Add(time.Hour))
	require.True(t, ok)
	assert.True(t, row.InputPer1K.Equal(dec("0.003")))
}

func TestComputeS1HappyPath(t *testing.T) {
	row := span.PricingRow{InputPer1K: dec("0.003"), OutputPer1K: dec("0.015")}
	c := cost.Compute(row, span.LLMDetail{InputTokens: 10000, OutputTokens: 2000})
	assert.True(t, c.Total.Equal(dec("0.06")), "got %s", c.Total)
}

func TestComputeZeroTokensIsZeroCostNotMiss(t *testing.T) {
	row := span.PricingRow{InputPer1K: dec("0.003"), OutputPer1K: dec("0.015")}
	c := cost.Compute(row, span.LLMDetail{InputTokens: 0, OutputTokens: 0})
	assert.True(t, c.Total.Equal(decimal.Zero))
}

func TestComputeReasoningOnlyWhenRowHasRate(t *testing.T) {
	row := span.PricingRow{InputPer1K: dec("0.003"), OutputPer1K: dec("0.015")}
	reasoning := int64(1000)
	c := cost.Compute(row, span.LLMDetail{InputTokens: 1000, OutputTokens: 0, ReasoningTokens: &reasoning})
	assert.True(t, c.Reasoning.Equal(decimal.Zero), "no reasoning rate on the row means zero reasoning cost")
}

func TestApplyAttachesCostOnHit(t *testing.T) {
	c := cost.New(false)
	eff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Reload([]span.PricingRow{
		{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", EffectiveFrom: eff, InputPer1K: dec("0.003"), OutputPer1K: dec("0.015")},
	})
	s := &span.Span{
		StartTime: eff.Add(time.Hour),
		LLM:       &span.LLMDetail{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", InputTokens: 10000, OutputTokens: 2000},
	}
	ok := c.Apply(s)
	require.True(t, ok)
	require.NotNil(t, s.Cost)
	assert.True(t, s.Cost.Total.Equal(dec("0.06")))
}

func TestApplyLeavesCostNilOnMiss(t *testing.T) {
	c := cost.New(false)
	s := &span.Span{
		StartTime: time.Now(),
		LLM:       &span.LLMDetail{Provider: "openai", Model: "future-model-x", InputTokens: 1000, OutputTokens: 500},
	}
	ok := c.Apply(s)
	assert.False(t, ok)
	assert.Nil(t, s.Cost)
}

func TestApplyNonLLMSpanIsNoop(t *testing.T) {
	c := cost.New(false)
	s := &span.Span{StartTime: time.Now()}
	assert.True(t, c.Apply(s))
	assert.Nil(t, s.Cost)
}
