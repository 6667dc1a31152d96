package validator

import "github.com/beaconhq/pulse/pkg/span"

// shapeDTO is the struct-tag-validated subset of a span's required fields.
// go-playground/validator checks these cheap, context-free shape
// constraints; everything that depends on cross-field or temporal state
// (time order, parent/trace consistency, token-sum budget) is checked by
// hand in validator.go, since struct tags can't express those relationships.
type shapeDTO struct {
	SpanID  string `validate:"required"`
	TraceID string `validate:"required"`
	Service string `validate:"required"`
	Name    string `validate:"required"`
	Kind    string `validate:"required"`
	Status  string `validate:"required"`
}

func toShapeDTO(s *span.Span) shapeDTO {
	return shapeDTO{
		SpanID:  string(s.SpanID),
		TraceID: string(s.TraceID),
		Service: s.Service,
		Name:    s.Name,
		Kind:    string(s.Kind),
		Status:  string(s.Status),
	}
}
