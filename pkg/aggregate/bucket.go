package aggregate

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// bucket is one rollup key's counters for one window. Mutation is
// protected by a per-bucket mutex (this design's "per-key fine-grained
// synchronization"), kept deliberately small so the critical section on
// the hot observation path stays short.
type bucket struct {
	mu sync.Mutex

	windowStart time.Time
	windowSecs  int

	count      int64
	errorCount int64

	inputTokens  int64
	outputTokens int64
	totalTokens  int64
	costSum      decimal.Decimal

	latency *reservoir
}

func newBucket(windowStart time.Time, windowSecs, reservoirSize int) *bucket {
	return &bucket{
		windowStart: windowStart,
		windowSecs:  windowSecs,
		latency:     newReservoir(reservoirSize),
	}
}

// observe folds one span's contribution into the bucket.
func (b *bucket) observe(s *span.Span) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if s.Status == config.SpanStatusError {
		b.errorCount++
	}
	if s.LLM != nil {
		b.inputTokens += s.LLM.InputTokens
		b.outputTokens += s.LLM.OutputTokens
		b.totalTokens += s.LLM.TotalTokens()
	}
	if s.Cost != nil {
		b.costSum = b.costSum.Add(s.Cost.Total)
	}
	if s.DurationMicros != nil {
		b.latency.observe(float64(*s.DurationMicros))
	}
}

// snapshot clones the bucket's state into the immutable, read-only
// span.AggregateBucket shape consumed by the Alert Engine and dashboards.
func (b *bucket) snapshot(key span.RollupKey) span.AggregateBucket {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.latency.percentiles()
	return span.AggregateBucket{
		Key:          key,
		WindowStart:  b.windowStart,
		WindowSecs:   b.windowSecs,
		Count:        b.count,
		ErrorCount:   b.errorCount,
		InputTokens:  b.inputTokens,
		OutputTokens: b.outputTokens,
		TotalTokens:  b.totalTokens,
		CostSum:      b.costSum,
		Latency: span.Percentiles{
			P50: p.P50, P90: p.P90, P95: p.P95, P99: p.P99, Min: p.Min, Max: p.Max,
		},
	}
}
