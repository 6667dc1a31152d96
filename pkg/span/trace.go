package span

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/beaconhq/pulse/pkg/config"
)

// Trace is the transitive closure of spans sharing a trace identity. It is
// derived at read time, not stored as a first-class row; aggregates here
// are recomputed from constituent spans.
type Trace struct {
	TraceID    ID
	RootSpanID *ID // the single parent-less span, nil until known

	StartTime time.Time
	EndTime   time.Time // max(end) across constituent spans; zero if any span is still running

	SpanCount  int
	ErrorCount int
	TotalCost  decimal.Decimal

	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalTokens       int64
}

// Duration returns EndTime - StartTime. Callers must check that EndTime is
// non-zero first; an open trace has a zero EndTime.
func (t Trace) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

// Derive computes a Trace summary from a flat set of spans sharing a trace
// ID. It does not materialize the parent/child tree — per this design's design
// notes, span trees are never materialized in the core.
func Derive(spans []*Span) Trace {
	var t Trace
	if len(spans) == 0 {
		return t
	}
	t.TraceID = spans[0].TraceID
	t.StartTime = spans[0].StartTime
	allTerminal := true

	for _, s := range spans {
		if s.ParentSpanID == nil {
			id := s.SpanID
			t.RootSpanID = &id
		}
		if s.StartTime.Before(t.StartTime) {
			t.StartTime = s.StartTime
		}
		if s.EndTime == nil {
			allTerminal = false
		} else if s.EndTime.After(t.EndTime) {
			t.EndTime = *s.EndTime
		}
		if s.Status == config.SpanStatusError {
			t.ErrorCount++
		}
		t.SpanCount++
		if s.Cost != nil {
			t.TotalCost = t.TotalCost.Add(s.Cost.Total)
		}
		if s.LLM != nil {
			t.TotalInputTokens += s.LLM.InputTokens
			t.TotalOutputTokens += s.LLM.OutputTokens
			t.TotalTokens += s.LLM.TotalTokens()
		}
	}

	if !allTerminal {
		t.EndTime = time.Time{}
	}
	return t
}
