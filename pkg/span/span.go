// Package span defines the core data model shared by every pipeline stage:
// Span, Trace, PricingRow, AggregateBucket, AlertRule, and AlertEvent, per
// the data model in the design
package span

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beaconhq/pulse/pkg/config"
)

// ID is a 128-bit identity, uniformly random, unique per emitter. Spans,
// traces, rules, and events all key off this type.
type ID string

// NewID generates a fresh random identity.
func NewID() ID {
	return ID(uuid.New().String())
}

// Valid reports whether id parses as a 128-bit UUID value.
func (id ID) Valid() bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(string(id))
	return err == nil
}

// AttrValue is a JSON-scalar, array-of-scalar, or nested-object-of-scalars
// attribute value attribute-shape invariant.
type AttrValue = any

// Attributes is an unordered map of typed attributes. Keys must be
// non-empty; see pkg/validator for the shape check.
type Attributes map[string]AttrValue

// Event is a single timestamped point within a span's finite ordered event list.
type Event struct {
	Time       time.Time  `json:"time"`
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// LLMDetail carries the fields specific to an LLM-call span.
type LLMDetail struct {
	Provider          string   `json:"provider"`
	Model             string   `json:"model"`
	Temperature       *float64 `json:"temperature,omitempty"`
	MaxTokens         *int64   `json:"max_tokens,omitempty"`
	InputTokens       int64    `json:"input_tokens"`
	OutputTokens      int64    `json:"output_tokens"`
	ReasoningTokens   *int64   `json:"reasoning_tokens,omitempty"`
	CacheReadTokens   *int64   `json:"cache_read_tokens,omitempty"`
	CacheCreateTokens *int64   `json:"cache_create_tokens,omitempty"`
	InputPreview      string   `json:"input_preview,omitempty"`
	OutputPreview     string   `json:"output_preview,omitempty"`
}

// TotalTokens returns input + output + reasoning (when present).
func (d LLMDetail) TotalTokens() int64 {
	total := d.InputTokens + d.OutputTokens
	if d.ReasoningTokens != nil {
		total += *d.ReasoningTokens
	}
	return total
}

// ToolDetail carries the fields specific to a tool-call span.
type ToolDetail struct {
	ToolName       string     `json:"tool_name"`
	Input          Attributes `json:"input,omitempty"`
	OutputPreview  string     `json:"output_preview,omitempty"`
}

// FileOp enumerates the kind of file operation a FileDetail describes.
type FileOp string

const (
	FileOpRead  FileOp = "read"
	FileOpWrite FileOp = "write"
)

// FileDetail carries the fields specific to a file-read/write span.
type FileDetail struct {
	Path  string `json:"path"`
	Op    FileOp `json:"op"`
	Bytes int64  `json:"bytes"`
	Lines int64  `json:"lines"`
}

// Cost holds the fixed-scale decimal cost breakdown computed by the cost
// calculator. A span's Cost pointer stays nil until a pricing row is
// matched; a PricingMiss leaves it nil.
type Cost struct {
	Input     decimal.Decimal `json:"input_cost"`
	Output    decimal.Decimal `json:"output_cost"`
	Reasoning decimal.Decimal `json:"reasoning_cost"`
	Total     decimal.Decimal `json:"total_cost"`
}

// Span is one operation inside an agent's execution.
type Span struct {
	SpanID       ID             `json:"span_id"`
	TraceID      ID             `json:"trace_id"`
	ParentSpanID *ID            `json:"parent_span_id,omitempty"`
	Service      string         `json:"service"`
	Name         string         `json:"name"`
	Kind         config.SpanKind `json:"kind"`
	Status       config.SpanStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Attributes Attributes `json:"attributes,omitempty"`
	Events     []Event    `json:"events,omitempty"`

	LLM  *LLMDetail  `json:"llm,omitempty"`
	Tool *ToolDetail `json:"tool,omitempty"`
	File *FileDetail `json:"file,omitempty"`

	// Enricher-derived fields.
	DurationMicros *int64 `json:"duration_micros,omitempty"`
	HostTag        string `json:"host_tag,omitempty"`
	CollectorVer   string `json:"collector_version,omitempty"`

	// Cost-calculator-derived field; nil means PricingMiss.
	Cost *Cost `json:"cost,omitempty"`

	// Receiver-stamped metadata, not part of the wire record.
	ReceivedAt time.Time     `json:"-"`
	Transport  config.TransportKind `json:"-"`
	SourceTag  string        `json:"-"`
}

// Duration returns end-start when both are present.
func (s *Span) Duration() (time.Duration, bool) {
	if s.EndTime == nil {
		return 0, false
	}
	return s.EndTime.Sub(s.StartTime), true
}

// IsRunning reports whether the span has no end time yet.
func (s *Span) IsRunning() bool {
	return s.EndTime == nil
}
