// Package validator implements C2: it enforces the invariants of
// the design on each decoded span and rejects with a tagged reason.
// Rejections never halt the pipeline; they are counted per reason and
// logged at a sampled rate.
package validator

import (
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	playval "github.com/go-playground/validator/v10"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/pulseerr"
	"github.com/beaconhq/pulse/pkg/span"
)

// Validator checks every invariant in the design and reports a tagged
// RejectReason on failure.
type Validator struct {
	structValidate *playval.Validate
	logSampleEvery uint32

	counts map[config.RejectReason]*atomic.Int64
}

// New constructs a Validator. logSampleEvery controls sampled-rate logging
// of rejections (1 in N); 0 disables rejection logging entirely.
func New(logSampleEvery uint32) *Validator {
	v := &Validator{
		structValidate: playval.New(),
		logSampleEvery: logSampleEvery,
		counts:         make(map[config.RejectReason]*atomic.Int64, 6),
	}
	for _, r := range []config.RejectReason{
		config.RejectBadIdentity, config.RejectTimeOrder, config.RejectOrphanParent,
		config.RejectTokenBudget, config.RejectAttributeShape, config.RejectUnknownKind,
	} {
		v.counts[r] = &atomic.Int64{}
	}
	return v
}

// Count returns the running rejection count for reason r.
func (v *Validator) Count(r config.RejectReason) int64 {
	if c, ok := v.counts[r]; ok {
		return c.Load()
	}
	return 0
}

// Validate checks s against every invariant in the design A nil error
// means the record may proceed to the Enricher.
func (v *Validator) Validate(s *span.Span) error {
	if reason, err := v.check(s); err != nil {
		v.record(reason)
		return pulseerr.NewWithReason(pulseerr.Invalid, "validator", string(reason), err)
	}
	return nil
}

func (v *Validator) check(s *span.Span) (config.RejectReason, error) {
	if err := v.structValidate.Struct(toShapeDTO(s)); err != nil {
		return config.RejectAttributeShape, err
	}

	if !s.SpanID.Valid() || !s.TraceID.Valid() {
		return config.RejectBadIdentity, errBadIdentity
	}
	if s.ParentSpanID != nil && *s.ParentSpanID == s.SpanID {
		return config.RejectAttributeShape, errSelfParent
	}

	if !s.Kind.IsValid() {
		return config.RejectUnknownKind, errUnknownKind
	}
	if !s.Status.IsValid() {
		return config.RejectUnknownKind, errUnknownStatus
	}

	if s.EndTime != nil && s.EndTime.Before(s.StartTime) {
		return config.RejectTimeOrder, errTimeOrder
	}
	if (s.Status == config.SpanStatusRunning) != (s.EndTime == nil) {
		return config.RejectTimeOrder, errStatusEndMismatch
	}

	if s.ParentSpanID != nil {
		// OrphanParent: in this normalized form the parent's trace ID isn't
		// directly knowable without the pipeline's in-flight index, so the
		// enricher/controller layer that holds that index calls
		// ValidateParentTrace separately; here we only reject the
		// self-reference case above.
		_ = s.ParentSpanID
	}

	if s.LLM != nil {
		total := s.LLM.TotalTokens()
		minTotal := s.LLM.InputTokens + s.LLM.OutputTokens
		maxTotal := minTotal
		if s.LLM.ReasoningTokens != nil {
			maxTotal += *s.LLM.ReasoningTokens
		}
		if total < minTotal || total > maxTotal {
			return config.RejectTokenBudget, errTokenBudget
		}
	}

	if err := checkAttributeShape(s.Attributes); err != nil {
		return config.RejectAttributeShape, err
	}

	return "", nil
}

// ValidateParentTrace rejects a span whose parent belongs to a different
// trace (OrphanParent). It's separate from Validate because checking it
// requires the controller's in-flight span index, which the validator
// itself doesn't own.
func (v *Validator) ValidateParentTrace(child *span.Span, parentTraceID span.ID) error {
	if child.ParentSpanID == nil {
		return nil
	}
	if child.TraceID != parentTraceID {
		v.record(config.RejectOrphanParent)
		return pulseerr.NewWithReason(pulseerr.Invalid, "validator", string(config.RejectOrphanParent), errOrphanParent)
	}
	return nil
}

func (v *Validator) record(reason config.RejectReason) {
	if c, ok := v.counts[reason]; ok {
		c.Add(1)
	}
	if v.logSampleEvery == 0 {
		return
	}
	if rand.Uint32N(v.logSampleEvery) == 0 {
		slog.Warn("span rejected", "reason", reason)
	}
}
