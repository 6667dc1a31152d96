package span

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/beaconhq/pulse/pkg/config"
)

// RollupKey is the tuple the aggregator keys its buckets on.
type RollupKey struct {
	Service   string
	Model     string
	Operation string
	Kind      config.SpanKind
}

// Percentiles holds the latency percentiles derived from a bucket's
// reservoir at read time.
type Percentiles struct {
	P50 float64
	P90 float64
	P95 float64
	P99 float64
	Min float64
	Max float64
}

// AggregateBucket is an immutable, read-only view of one rollup key's
// rolling counters for one window, as returned by Aggregator.Snapshot. The
// live, mutable bucket (with its reservoir) lives in pkg/aggregate; this is
// the shape alert evaluation and dashboards consume.
type AggregateBucket struct {
	Key         RollupKey
	WindowStart time.Time
	WindowSecs  int

	Count      int64
	ErrorCount int64

	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostSum      decimal.Decimal

	Latency Percentiles
}

// ErrorRate returns ErrorCount / max(Count, 1)
func (b AggregateBucket) ErrorRate() float64 {
	if b.Count == 0 {
		return 0
	}
	return float64(b.ErrorCount) / float64(b.Count)
}

// RequestRate returns Count / window_seconds.
func (b AggregateBucket) RequestRate() float64 {
	if b.WindowSecs == 0 {
		return 0
	}
	return float64(b.Count) / float64(b.WindowSecs)
}

// TokenUsage returns the sum of input, output, and reasoning tokens.
func (b AggregateBucket) TokenUsage() int64 {
	return b.TotalTokens
}
