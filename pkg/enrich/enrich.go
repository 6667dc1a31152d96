// Package enrich implements C3: it derives computed fields on a span
// (duration, terminal-status inference, host/collector tags, normalized
// model casing, truncated previews) without ever mutating the span's
// semantic identity.
package enrich

import (
	"strings"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// Enricher holds the process-wide tags applied to every span it touches.
type Enricher struct {
	hostTag              string
	collectorVersion     string
	truncatePreviewBytes int
}

// New constructs an Enricher from a snapshot of EnricherConfig.
func New(cfg config.EnricherConfig) *Enricher {
	return &Enricher{
		hostTag:              cfg.HostTag,
		collectorVersion:     cfg.CollectorVersion,
		truncatePreviewBytes: cfg.TruncatePreviewBytes,
	}
}

// Enrich mutates s in place with derived fields. It never changes
// SpanID/TraceID/ParentSpanID/Kind — the fields that define a span's
// semantic identity.
func (e *Enricher) Enrich(s *span.Span) {
	e.deriveDuration(s)
	e.inferTerminalStatus(s)
	e.applyTags(s)
	e.normalizeModel(s)
	e.truncatePreviews(s)
}

func (e *Enricher) deriveDuration(s *span.Span) {
	if s.EndTime == nil {
		return
	}
	micros := s.EndTime.Sub(s.StartTime).Microseconds()
	s.DurationMicros = &micros
}

// inferTerminalStatus promotes status=running with an end-time present and
// no error to ok — the emitter omitted the terminal status.
func (e *Enricher) inferTerminalStatus(s *span.Span) {
	if s.Status == config.SpanStatusRunning && s.EndTime != nil && s.ErrorMessage == "" {
		s.Status = config.SpanStatusOK
	}
}

func (e *Enricher) applyTags(s *span.Span) {
	s.HostTag = e.hostTag
	s.CollectorVer = e.collectorVersion
}

// normalizeModel lower-cases the model string for consistent downstream
// keying (aggregator rollup keys, pricing lookup).
func (e *Enricher) normalizeModel(s *span.Span) {
	if s.LLM == nil {
		return
	}
	s.LLM.Model = strings.ToLower(strings.TrimSpace(s.LLM.Model))
}

func (e *Enricher) truncatePreviews(s *span.Span) {
	if e.truncatePreviewBytes <= 0 {
		return
	}
	if s.LLM != nil {
		s.LLM.InputPreview = truncateAtLineBoundary(s.LLM.InputPreview, e.truncatePreviewBytes)
		s.LLM.OutputPreview = truncateAtLineBoundary(s.LLM.OutputPreview, e.truncatePreviewBytes)
	}
	if s.Tool != nil {
		s.Tool.OutputPreview = truncateAtLineBoundary(s.Tool.OutputPreview, e.truncatePreviewBytes)
	}
}
