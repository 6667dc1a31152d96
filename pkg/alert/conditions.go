package alert

import (
	"math"
	"time"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// snapshotSource is the read side of the aggregator the alert engine needs.
// Kept as a narrow interface so evaluation can be tested against a fake
// without pulling in the concrete *aggregate.Aggregator.
type snapshotSource interface {
	Snapshot() []span.AggregateBucket
	WindowStart(t time.Time) time.Time
	WindowSeconds() int
}

// anomalyLookbackWindows bounds how many consecutive aggregator windows
// the anomaly condition's baseline is computed over (the design: "over
// the last R windows" — R is an engine-wide constant here rather than a
// per-rule field, since the design never names it as rule-configurable).
const anomalyLookbackWindows = 8

// evalResult is the outcome of evaluating one rule's condition for one tick.
type evalResult struct {
	tripped       bool
	observedValue float64
}

// evaluate dispatches to the condition-kind-specific evaluator.
func evaluate(src snapshotSource, rule span.AlertRule, now time.Time, rateChangeEpsilon float64) evalResult {
	switch rule.ConditionKind {
	case config.ConditionThreshold:
		return evaluateThreshold(src, rule, now)
	case config.ConditionRateChange:
		return evaluateRateChange(src, rule, now, rateChangeEpsilon)
	case config.ConditionAbsence:
		return evaluateAbsence(src, rule, now)
	case config.ConditionAnomaly:
		return evaluateAnomaly(src, rule, now)
	default:
		return evalResult{}
	}
}

// windowBucketsEndingAt returns every bucket matching rule.Scope whose
// window start falls inside [end - rule.WindowSeconds, end].
func windowBucketsEndingAt(src snapshotSource, rule span.AlertRule, end time.Time) []span.AggregateBucket {
	start := end.Add(-time.Duration(rule.WindowSeconds) * time.Second)
	var out []span.AggregateBucket
	for _, b := range src.Snapshot() {
		if !rule.Scope.Match(b.Key) {
			continue
		}
		if b.WindowStart.Before(start) || b.WindowStart.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func evaluateThreshold(src snapshotSource, rule span.AlertRule, now time.Time) evalResult {
	m := mergeBuckets(windowBucketsEndingAt(src, rule, now))
	value := deriveMetric(m, rule.Metric)
	return evalResult{tripped: rule.Operator.Compare(value, rule.Threshold), observedValue: value}
}

func evaluateAbsence(src snapshotSource, rule span.AlertRule, now time.Time) evalResult {
	m := mergeBuckets(windowBucketsEndingAt(src, rule, now))
	value := deriveMetric(m, config.MetricAbsence)
	return evalResult{tripped: value == 1, observedValue: value}
}

// evaluateRateChange compares the current window's metric against the
// immediately preceding window of the same length: |delta| / max(prior,
// epsilon) > threshold
func evaluateRateChange(src snapshotSource, rule span.AlertRule, now time.Time, epsilon float64) evalResult {
	curEnd := now
	curStart := curEnd.Add(-time.Duration(rule.WindowSeconds) * time.Second)
	priorEnd := curStart
	priorStart := priorEnd.Add(-time.Duration(rule.WindowSeconds) * time.Second)

	current := mergeBuckets(windowBucketsEndingAt(src, rule, curEnd))
	prior := mergeBuckets(filterByRange(src.Snapshot(), rule, priorStart, priorEnd))

	curVal := deriveMetric(current, rule.Metric)
	priorVal := deriveMetric(prior, rule.Metric)

	denom := math.Max(math.Abs(priorVal), epsilon)
	ratio := math.Abs(curVal-priorVal) / denom

	return evalResult{tripped: rule.Operator.Compare(ratio, rule.Threshold), observedValue: ratio}
}

// evaluateAnomaly trips when the current window's metric deviates from the
// mean of the last anomalyLookbackWindows windows by more than
// threshold standard deviations (a z-score test). This is the reference
// detector; the design treats it as a drop-in extension point behind the
// same windowMetrics→float64 contract, so swapping in a different
// detector means replacing this function's body alone.
func evaluateAnomaly(src snapshotSource, rule span.AlertRule, now time.Time) evalResult {
	windowDur := time.Duration(rule.WindowSeconds) * time.Second
	var samples []float64
	for i := 1; i <= anomalyLookbackWindows; i++ {
		end := now.Add(-time.Duration(i) * windowDur)
		start := end.Add(-windowDur)
		m := mergeBuckets(filterByRange(src.Snapshot(), rule, start, end))
		samples = append(samples, deriveMetric(m, rule.Metric))
	}

	current := mergeBuckets(windowBucketsEndingAt(src, rule, now))
	curVal := deriveMetric(current, rule.Metric)

	mean, stddev := meanStddev(samples)
	if stddev == 0 {
		return evalResult{observedValue: curVal}
	}
	z := math.Abs(curVal-mean) / stddev
	return evalResult{tripped: z > rule.Threshold, observedValue: z}
}

func filterByRange(buckets []span.AggregateBucket, rule span.AlertRule, start, end time.Time) []span.AggregateBucket {
	var out []span.AggregateBucket
	for _, b := range buckets {
		if !rule.Scope.Match(b.Key) {
			continue
		}
		if b.WindowStart.Before(start) || b.WindowStart.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func meanStddev(samples []float64) (mean, stddev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean = sum / float64(len(samples))

	var sqDiff float64
	for _, v := range samples {
		d := v - mean
		sqDiff += d * d
	}
	stddev = math.Sqrt(sqDiff / float64(len(samples)))
	return mean, stddev
}
