// Package realtime implements C7, the fan-out stage of the design: each
// enriched span is published to a subject computed from (trace-id,
// channel-type) — a per-trace subject and one or more coarse, kind-scoped
// subjects. The stage sits downstream of the persister's input channel so
// persistence can never be starved by a slow subscriber; all subscriber
// backpressure is absorbed inside pkg/bus, not here.
package realtime

import (
	"encoding/json"
	"log/slog"

	"github.com/beaconhq/pulse/pkg/bus"
	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

const (
	subjectSpansChannel = "channel:spans"
	subjectLLMChannel   = "channel:llm"
)

// traceSubject returns the per-trace subject for id.
func traceSubject(id span.ID) string {
	return "trace:" + string(id)
}

// Fanout publishes enriched spans to their computed subjects. It holds no
// state of its own beyond the bus it publishes through — correct per
// this design's preference for stages without shared mutable state.
type Fanout struct {
	bus bus.Bus
}

// New constructs a Fanout publishing through b.
func New(b bus.Bus) *Fanout {
	return &Fanout{bus: b}
}

// Publish computes every subject s belongs to and publishes the same
// encoded payload to each. A marshal failure is logged and the span is
// dropped from fan-out only — this is a best-effort channel, never the
// durable path, so it must never propagate an error into the pipeline.
func (f *Fanout) Publish(s *span.Span) {
	payload, err := json.Marshal(s)
	if err != nil {
		slog.Warn("realtime: failed to encode span for fan-out", "span_id", s.SpanID, "error", err)
		return
	}

	for _, subject := range f.subjectsFor(s) {
		f.bus.Publish(subject, payload)
	}
}

// subjectsFor computes the set of subjects a span is fanned out to: always
// its own trace subject and the coarse spans channel, plus the coarse llm
// channel when the span is an LLM call.
func (f *Fanout) subjectsFor(s *span.Span) []string {
	subjects := make([]string, 0, 3)
	subjects = append(subjects, traceSubject(s.TraceID), subjectSpansChannel)
	if s.Kind == config.SpanKindLLMCall {
		subjects = append(subjects, subjectLLMChannel)
	}
	return subjects
}
