// Package pulseerr defines the pipeline-wide error taxonomy: every stage in
// the ingestion pipeline classifies its failures into one of the Kinds
// below, so the controller and the callers upstream of it can decide
// whether to retry, degrade, count-and-continue, or surface a structured
// rejection to the emitter.
package pulseerr

import "fmt"

// Kind classifies a pipeline failure. It is a closed sum type: every
// failure produced anywhere in the pipeline is exactly one of these.
type Kind string

const (
	// Malformed means the wire bytes could not be decoded into a span at all.
	Malformed Kind = "malformed"
	// Invalid means the record decoded but failed a validator invariant.
	Invalid Kind = "invalid"
	// PricingMiss means no pricing row matched; non-fatal, cost stays undefined.
	PricingMiss Kind = "pricing_miss"
	// StoreTransient means a store commit failed in a retry-eligible way.
	StoreTransient Kind = "store_transient"
	// StoreFatal means retries were exhausted; the pipeline must degrade.
	StoreFatal Kind = "store_fatal"
	// SubscriberLag means a realtime subscriber fell behind; silently absorbed.
	SubscriberLag Kind = "subscriber_lag"
	// RuleEvalFault means a single alert rule's evaluation faulted.
	RuleEvalFault Kind = "rule_eval_fault"
	// Overloaded means a stage's input queue was full.
	Overloaded Kind = "overloaded"
)

// Error carries a Kind alongside the usual wrapped cause, a component tag
// for logging, and an optional structured reason code (populated by the
// validator for Invalid and the receivers for Malformed).
type Error struct {
	Kind      Kind
	Component string // e.g. "validator", "persister", "cost_calculator"
	Reason    string // fine-grained reason, e.g. "TimeOrder", "BadIdentity"
	Err       error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Component, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// NewWithReason constructs an Error carrying a fine-grained reason code.
func NewWithReason(kind Kind, component, reason string, err error) *Error {
	return &Error{Kind: kind, Component: component, Reason: reason, Err: err}
}

// Retryable reports whether the pipeline should retry an operation that
// failed with this kind (only StoreTransient is retry-eligible per the
// error propagation rules).
func Retryable(kind Kind) bool {
	return kind == StoreTransient
}

// Terminal reports whether a failure of this kind is terminal for the
// record it was raised for — it is counted and dropped, never retried.
func Terminal(kind Kind) bool {
	switch kind {
	case Malformed, Invalid:
		return true
	default:
		return false
	}
}

// Degrades reports whether a failure of this kind should flip the pipeline
// into degraded mode (persistence paused, receivers return Overloaded).
func Degrades(kind Kind) bool {
	return kind == StoreFatal
}
