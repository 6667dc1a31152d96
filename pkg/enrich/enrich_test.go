package enrich_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/enrich"
	"github.com/beaconhq/pulse/pkg/span"
)

func newEnricher() *enrich.Enricher {
	return enrich.New(config.EnricherConfig{
		HostTag:              "host-a",
		CollectorVersion:     "v1.2.3",
		TruncatePreviewBytes: 32,
	})
}

func TestEnrichDerivesDuration(t *testing.T) {
	e := newEnricher()
	start := time.Now()
	end := start.Add(3 * time.Second)
	s := &span.Span{StartTime: start, EndTime: &end, Status: config.SpanStatusOK}
	e.Enrich(s)
	require.NotNil(t, s.DurationMicros)
	assert.Equal(t, int64(3_000_000), *s.DurationMicros)
}

func TestEnrichLeavesRunningSpanWithoutDuration(t *testing.T) {
	e := newEnricher()
	s := &span.Span{StartTime: time.Now(), Status: config.SpanStatusRunning}
	e.Enrich(s)
	assert.Nil(t, s.DurationMicros)
}

func TestEnrichInfersTerminalStatus(t *testing.T) {
	e := newEnricher()
	end := time.Now()
	s := &span.Span{StartTime: end.Add(-time.Second), EndTime: &end, Status: config.SpanStatusRunning}
	e.Enrich(s)
	assert.Equal(t, config.SpanStatusOK, s.Status)
}

func TestEnrichDoesNotOverrideErrorStatus(t *testing.T) {
	e := newEnricher()
	end := time.Now()
	s := &span.Span{
		StartTime: end.Add(-time.Second), EndTime: &end,
		Status: config.SpanStatusRunning, ErrorMessage: "boom",
	}
	e.Enrich(s)
	assert.Equal(t, config.SpanStatusRunning, s.Status)
}

func TestEnrichAppliesTags(t *testing.T) {
	e := newEnricher()
	s := &span.Span{StartTime: time.Now(), Status: config.SpanStatusOK}
	e.Enrich(s)
	assert.Equal(t, "host-a", s.HostTag)
	assert.Equal(t, "v1.2.3", s.CollectorVer)
}

func TestEnrichNormalizesModelCase(t *testing.T) {
	e := newEnricher()
	s := &span.Span{
		StartTime: time.Now(), Status: config.SpanStatusOK,
		LLM: &span.LLMDetail{Model: "  Claude-3-5-Sonnet  "},
	}
	e.Enrich(s)
	assert.Equal(t, "claude-3-5-sonnet", s.LLM.Model)
}

func TestEnrichTruncatesPreviewAtByteBudget(t *testing.T) {
	e := newEnricher()
	long := strings.Repeat("a", 20) + "\n" + strings.Repeat("more text beyond the cutoff point entirely ", 3)
	s := &span.Span{
		StartTime: time.Now(), Status: config.SpanStatusOK,
		LLM: &span.LLMDetail{OutputPreview: long},
	}
	e.Enrich(s)
	assert.Less(t, len(s.LLM.OutputPreview), len(long))
	assert.Contains(t, s.LLM.OutputPreview, "TRUNCATED")
}

func TestEnrichLeavesShortPreviewUntouched(t *testing.T) {
	e := newEnricher()
	s := &span.Span{
		StartTime: time.Now(), Status: config.SpanStatusOK,
		LLM: &span.LLMDetail{OutputPreview: "short"},
	}
	e.Enrich(s)
	assert.Equal(t, "short", s.LLM.OutputPreview)
}

func TestEnrichNeverTouchesIdentity(t *testing.T) {
	e := newEnricher()
	id, trace := span.NewID(), span.NewID()
	s := &span.Span{
		SpanID: id, TraceID: trace, Kind: config.SpanKindAgentStep,
		StartTime: time.Now(), Status: config.SpanStatusOK,
	}
	e.Enrich(s)
	assert.Equal(t, id, s.SpanID)
	assert.Equal(t, trace, s.TraceID)
	assert.Equal(t, config.SpanKindAgentStep, s.Kind)
}
