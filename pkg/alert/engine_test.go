package alert_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/pulse/pkg/alert"
	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// fakeSource is a hand-built snapshot the engine reads against — it
// changes only when a test calls set, so tests control exactly what the
// engine observes at each evaluation.
type fakeSource struct {
	mu      sync.Mutex
	buckets []span.AggregateBucket
	windSec int
}

func (f *fakeSource) Snapshot() []span.AggregateBucket {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]span.AggregateBucket, len(f.buckets))
	copy(out, f.buckets)
	return out
}

func (f *fakeSource) WindowStart(t time.Time) time.Time {
	sec := int64(f.windSec)
	return time.Unix((t.Unix()/sec)*sec, 0).UTC()
}

func (f *fakeSource) WindowSeconds() int { return f.windSec }

func (f *fakeSource) set(buckets []span.AggregateBucket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets = buckets
}

type fakeSink struct {
	mu     sync.Mutex
	events []span.AlertEvent
}

func (s *fakeSink) EnqueueEvent(evt span.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *fakeSink) all() []span.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]span.AlertEvent, len(s.events))
	copy(out, s.events)
	return out
}

func bucketAt(windowStart time.Time, windowSecs int, count, errCount int64) span.AggregateBucket {
	return span.AggregateBucket{
		Key:         span.RollupKey{Service: "svc", Kind: config.SpanKindLLMCall},
		WindowStart: windowStart,
		WindowSecs:  windowSecs,
		Count:       count,
		ErrorCount:  errCount,
		CostSum:     decimal.Zero,
	}
}

func TestThresholdRuleFiresAfterConsecutiveTrips(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{windSec: 60, buckets: []span.AggregateBucket{
		bucketAt(now.Add(-60*time.Second), 60, 200, 30), // 0.15 error rate — matches S3
	}}

	rule := span.AlertRule{
		RuleID:               span.NewID(),
		Name:                 "high-error-rate",
		Scope:                span.ScopeFilter{Service: "svc"},
		ConditionKind:        config.ConditionThreshold,
		Metric:               config.MetricErrorRate,
		Operator:             config.OpGreaterThan,
		Threshold:            0.10,
		WindowSeconds:        300,
		EvaluationCadenceSec: 1,
		ConsecutiveRequired:  2,
		Severity:             config.SeverityWarning,
		Enabled:              true,
	}

	rules := alert.NewRuleTable()
	rules.Upsert(rule)
	sink := &fakeSink{}
	eng := alert.New(rules, src, sink, nil, config.AlertConfig{EvaluationDeadlineMS: 2000, RateChangeEpsilon: 1e-9})

	ctx := context.Background()
	eng.Start(ctx)
	defer eng.Stop()

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, 3*time.Second, 20*time.Millisecond)

	evt := sink.all()[0]
	assert.Equal(t, config.EventTriggered, evt.Status)
	assert.InDelta(t, 0.15, evt.ObservedValue, 0.001)
}

func TestRuleResolvesWhenConditionClears(t *testing.T) {
	r := span.AlertRule{
		RuleID: span.NewID(), Name: "r", ConsecutiveRequired: 1,
		ConditionKind: config.ConditionThreshold,
		Metric:        config.MetricErrorRate, Operator: config.OpGreaterThan, Threshold: 0.1,
		WindowSeconds: 300, EvaluationCadenceSec: 1, Enabled: true,
		Severity: config.SeverityWarning,
	}
	rules := alert.NewRuleTable()
	rules.Upsert(r)

	now := time.Now().UTC()
	src := &fakeSource{windSec: 60, buckets: []span.AggregateBucket{
		bucketAt(now.Add(-60*time.Second), 60, 200, 30),
	}}
	sink := &fakeSink{}
	eng := alert.New(rules, src, sink, nil, config.AlertConfig{EvaluationDeadlineMS: 2000, RateChangeEpsilon: 1e-9})

	ctx := context.Background()
	eng.Start(ctx)

	require.Eventually(t, func() bool {
		for _, evt := range sink.all() {
			if evt.Status == config.EventTriggered {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)

	// Now clear the condition entirely.
	src.set([]span.AggregateBucket{bucketAt(now.Add(-60*time.Second), 60, 200, 0)})

	require.Eventually(t, func() bool {
		for _, evt := range sink.all() {
			if evt.Status == config.EventResolved {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)

	eng.Stop()
}

func TestAcknowledgeDoesNotCloseEvent(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{windSec: 60, buckets: []span.AggregateBucket{
		bucketAt(now.Add(-60*time.Second), 60, 200, 30),
	}}
	rule := span.AlertRule{
		RuleID: span.NewID(), Name: "r", ConditionKind: config.ConditionThreshold,
		Metric: config.MetricErrorRate, Operator: config.OpGreaterThan, Threshold: 0.1,
		WindowSeconds: 300, EvaluationCadenceSec: 1, ConsecutiveRequired: 1, Enabled: true,
		Severity: config.SeverityWarning,
	}
	rules := alert.NewRuleTable()
	rules.Upsert(rule)
	sink := &fakeSink{}
	eng := alert.New(rules, src, sink, nil, config.AlertConfig{EvaluationDeadlineMS: 2000, RateChangeEpsilon: 1e-9})
	eng.Start(context.Background())
	defer eng.Stop()

	require.Eventually(t, func() bool { return len(sink.all()) >= 1 }, 3*time.Second, 20*time.Millisecond)
	evt := sink.all()[0]

	ok := eng.AcknowledgeEvent(evt.EventID)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		for _, e := range sink.all() {
			if e.EventID == evt.EventID && e.Status == config.EventAcknowledged {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRuleTableUpsertPreservesRuntimeState(t *testing.T) {
	rules := alert.NewRuleTable()
	original := span.AlertRule{RuleID: span.NewID(), Name: "r", ConsecutiveTrips: 3, State: span.RuleStateTripping}
	rules.Upsert(original)

	edited := original
	edited.Threshold = 99
	got := rules.Upsert(edited)

	assert.Equal(t, 3, got.ConsecutiveTrips)
	assert.Equal(t, span.RuleStateTripping, got.State)
	assert.Equal(t, float64(99), got.Threshold)
}

func TestRuleTableDeleteIsIdempotent(t *testing.T) {
	rules := alert.NewRuleTable()
	assert.NotPanics(t, func() { rules.Delete(span.NewID()) })
}

func TestRuleTableSetEnabled(t *testing.T) {
	rules := alert.NewRuleTable()
	r := rules.Upsert(span.AlertRule{RuleID: span.NewID(), Enabled: true})
	ok := rules.SetEnabled(r.RuleID, false)
	require.True(t, ok)
	got, _ := rules.Get(r.RuleID)
	assert.False(t, got.Enabled)
}
