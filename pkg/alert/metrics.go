package alert

import (
	"math"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// windowMetrics is the merged view of every bucket matching a rule's scope
// within its evaluation window — the input to metric derivation. Buckets
// are summed rather than averaged for counts, and percentile fields are
// combined by taking the max across constituent buckets, a conservative
// approximation that never under-reports a latency spike spread across
// more than one aggregator-granularity bucket (the design allows any
// observe()/quantile() compatible derivation; this is the rule-evaluation
// equivalent of that contract over multiple buckets instead of one).
type windowMetrics struct {
	count        int64
	errorCount   int64
	inputTokens  int64
	outputTokens int64
	totalTokens  int64
	costSum      float64
	windowSecs   int
	latency      span.Percentiles
}

func mergeBuckets(buckets []span.AggregateBucket) windowMetrics {
	var m windowMetrics
	for _, b := range buckets {
		m.count += b.Count
		m.errorCount += b.ErrorCount
		m.inputTokens += b.InputTokens
		m.outputTokens += b.OutputTokens
		m.totalTokens += b.TotalTokens
		costF, _ := b.CostSum.Float64()
		m.costSum += costF
		m.windowSecs += b.WindowSecs
		m.latency.P50 = math.Max(m.latency.P50, b.Latency.P50)
		m.latency.P90 = math.Max(m.latency.P90, b.Latency.P90)
		m.latency.P95 = math.Max(m.latency.P95, b.Latency.P95)
		m.latency.P99 = math.Max(m.latency.P99, b.Latency.P99)
	}
	return m
}

// deriveMetric computes the named metric over a merged window, per the
// the design metric-derivation table.
func deriveMetric(m windowMetrics, metric config.AlertMetric) float64 {
	switch metric {
	case config.MetricErrorRate:
		if m.count == 0 {
			return 0
		}
		return float64(m.errorCount) / float64(m.count)
	case config.MetricRequestRate:
		if m.windowSecs == 0 {
			return 0
		}
		return float64(m.count) / float64(m.windowSecs)
	case config.MetricLatencyP50:
		return m.latency.P50
	case config.MetricLatencyP90:
		return m.latency.P90
	case config.MetricLatencyP95:
		return m.latency.P95
	case config.MetricLatencyP99:
		return m.latency.P99
	case config.MetricCostSum:
		return m.costSum
	case config.MetricTokenUsage:
		return float64(m.totalTokens)
	case config.MetricAbsence:
		if m.count == 0 {
			return 1
		}
		return 0
	default:
		return 0
	}
}
