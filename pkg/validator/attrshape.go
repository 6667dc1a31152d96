package validator

import (
	"errors"
	"fmt"

	"github.com/beaconhq/pulse/pkg/span"
)

var (
	errBadIdentity       = errors.New("span_id/trace_id must be non-empty 128-bit values")
	errSelfParent        = errors.New("parent_span_id must not equal span_id")
	errUnknownKind       = errors.New("unrecognized span kind")
	errUnknownStatus     = errors.New("unrecognized span status")
	errTimeOrder         = errors.New("end_time before start_time")
	errStatusEndMismatch = errors.New("status=running iff end_time absent")
	errTokenBudget       = errors.New("input_tokens + output_tokens <= total_tokens <= input_tokens + output_tokens + reasoning_tokens")
	errOrphanParent      = errors.New("parent_span_id belongs to a different trace")
)

// checkAttributeShape enforces this design's attribute invariant: keys are
// non-empty; values are JSON-scalar, array-of-scalar, or nested object of
// scalars (one level of nesting, since the wire form is flat-friendly).
func checkAttributeShape(attrs span.Attributes) error {
	for k, v := range attrs {
		if k == "" {
			return fmt.Errorf("empty attribute key")
		}
		if !isShapeValid(v, true) {
			return fmt.Errorf("attribute %q: value is not JSON-scalar, array-of-scalar, or object-of-scalars", k)
		}
	}
	return nil
}

func isShapeValid(v any, allowNested bool) bool {
	switch val := v.(type) {
	case nil, bool, string, int, int64, float64, float32:
		return true
	case []any:
		for _, item := range val {
			if !isShapeValid(item, false) {
				return false
			}
		}
		return true
	case map[string]any:
		if !allowNested {
			return false
		}
		for _, item := range val {
			if !isShapeValid(item, false) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
