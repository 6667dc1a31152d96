package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/pulse/pkg/aggregate"
	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

func newAggregator() *aggregate.Aggregator {
	return aggregate.New(config.AggregatorConfig{WindowSeconds: 60, WindowsRetained: 3, ReservoirSize: 128})
}

func makeSpan(start time.Time, status config.SpanStatus, durMicros int64) *span.Span {
	return &span.Span{
		Service: "svc", Name: "op", Kind: config.SpanKindLLMCall,
		Status: status, StartTime: start, DurationMicros: &durMicros,
		LLM: &span.LLMDetail{Model: "gpt-4o", InputTokens: 10, OutputTokens: 5},
	}
}

func TestObserveAccumulatesCounts(t *testing.T) {
	a := newAggregator()
	base := time.Now().Truncate(time.Minute)

	a.Observe(makeSpan(base, config.SpanStatusOK, 1000))
	a.Observe(makeSpan(base.Add(time.Second), config.SpanStatusError, 2000))

	snap := a.Snapshot()
	require.Len(t, snap, 1)
	b := snap[0]
	assert.EqualValues(t, 2, b.Count)
	assert.EqualValues(t, 1, b.ErrorCount)
	assert.InDelta(t, 0.5, b.ErrorRate(), 1e-9)
	assert.EqualValues(t, 20, b.InputTokens)
}

func TestObserveSeparatesWindows(t *testing.T) {
	a := newAggregator()
	base := time.Now().Truncate(time.Minute)

	a.Observe(makeSpan(base, config.SpanStatusOK, 100))
	a.Observe(makeSpan(base.Add(90*time.Second), config.SpanStatusOK, 100))

	snap := a.Snapshot()
	assert.Len(t, snap, 2)
}

func TestEvictDropsOldWindows(t *testing.T) {
	a := newAggregator()
	old := time.Now().Add(-1 * time.Hour)
	a.Observe(makeSpan(old, config.SpanStatusOK, 100))

	a.Evict(time.Now())
	assert.Empty(t, a.Snapshot())
}

func TestSnapshotWindowLookup(t *testing.T) {
	a := newAggregator()
	base := time.Now().Truncate(time.Minute)
	a.Observe(makeSpan(base, config.SpanStatusOK, 100))

	key := span.RollupKey{Service: "svc", Model: "gpt-4o", Operation: "op", Kind: config.SpanKindLLMCall}
	b, ok := a.SnapshotWindow(key, a.WindowStart(base))
	require.True(t, ok)
	assert.EqualValues(t, 1, b.Count)

	_, ok = a.SnapshotWindow(key, a.WindowStart(base.Add(10*time.Hour)))
	assert.False(t, ok)
}

func TestPercentilesDerivedAtReadTime(t *testing.T) {
	a := newAggregator()
	base := time.Now().Truncate(time.Minute)
	for i := int64(1); i <= 100; i++ {
		a.Observe(makeSpan(base, config.SpanStatusOK, i*1000))
	}

	snap := a.Snapshot()
	require.Len(t, snap, 1)
	b := snap[0]
	assert.Greater(t, b.Latency.P99, b.Latency.P50)
	assert.GreaterOrEqual(t, b.Latency.Max, b.Latency.P99)
}

func TestConcurrentObserveIsRaceFree(t *testing.T) {
	a := newAggregator()
	base := time.Now().Truncate(time.Minute)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				a.Observe(makeSpan(base, config.SpanStatusOK, 100))
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	snap := a.Snapshot()
	require.Len(t, snap, 1)
	assert.EqualValues(t, 1600, snap[0].Count)
}
