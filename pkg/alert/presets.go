package alert

import (
	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// Preset builders resolve this design's Open Question on the alert
// condition-kind union: config.AlertConditionKind (threshold / rate_change
// / absence / anomaly) is the authoritative set a rule is stored and
// evaluated as. The newer "metric-shortcut" phrasing some operators expect
// ("alert when error rate is high", "alert on latency spikes") is offered
// here as convenience constructors over that same authoritative shape,
// not as additional condition kinds the engine has to understand.

// ErrorRateThreshold builds a threshold rule on error_rate.
func ErrorRateThreshold(name string, scope span.ScopeFilter, threshold float64, windowSeconds, cadenceSeconds, consecutiveRequired int, severity config.AlertSeverity) span.AlertRule {
	return span.AlertRule{
		RuleID:               span.NewID(),
		Name:                 name,
		Scope:                scope,
		ConditionKind:        config.ConditionThreshold,
		Metric:               config.MetricErrorRate,
		Operator:             config.OpGreaterThan,
		Threshold:            threshold,
		WindowSeconds:        windowSeconds,
		EvaluationCadenceSec: cadenceSeconds,
		ConsecutiveRequired:  consecutiveRequired,
		Severity:             severity,
		Enabled:              true,
	}
}

// LatencySpike builds a rate-change rule on the given latency percentile
// metric — "alert on latency spikes" expressed as a sudden jump relative
// to the immediately preceding window.
func LatencySpike(name string, scope span.ScopeFilter, metric config.AlertMetric, changeThreshold float64, windowSeconds, cadenceSeconds, consecutiveRequired int, severity config.AlertSeverity) span.AlertRule {
	return span.AlertRule{
		RuleID:               span.NewID(),
		Name:                 name,
		Scope:                scope,
		ConditionKind:        config.ConditionRateChange,
		Metric:               metric,
		Operator:             config.OpGreaterThan,
		Threshold:            changeThreshold,
		WindowSeconds:        windowSeconds,
		EvaluationCadenceSec: cadenceSeconds,
		ConsecutiveRequired:  consecutiveRequired,
		Severity:             severity,
		Enabled:              true,
	}
}

// CostBudget builds a threshold rule on cost_sum — "alert when spend in
// this window exceeds N".
func CostBudget(name string, scope span.ScopeFilter, maxCost float64, windowSeconds, cadenceSeconds int, severity config.AlertSeverity) span.AlertRule {
	return span.AlertRule{
		RuleID:               span.NewID(),
		Name:                 name,
		Scope:                scope,
		ConditionKind:        config.ConditionThreshold,
		Metric:               config.MetricCostSum,
		Operator:             config.OpGreaterThan,
		Threshold:            maxCost,
		WindowSeconds:        windowSeconds,
		EvaluationCadenceSec: cadenceSeconds,
		ConsecutiveRequired:  1,
		Severity:             severity,
		Enabled:              true,
	}
}

// SilentService builds an absence rule — "alert if this service stops
// sending spans entirely."
func SilentService(name string, scope span.ScopeFilter, windowSeconds, cadenceSeconds int, severity config.AlertSeverity) span.AlertRule {
	return span.AlertRule{
		RuleID:               span.NewID(),
		Name:                 name,
		Scope:                scope,
		ConditionKind:        config.ConditionAbsence,
		Metric:               config.MetricAbsence,
		Operator:             config.OpEqual,
		Threshold:            1,
		WindowSeconds:        windowSeconds,
		EvaluationCadenceSec: cadenceSeconds,
		ConsecutiveRequired:  consecutiveRequiredDefault,
		Severity:             severity,
		Enabled:              true,
	}
}

const consecutiveRequiredDefault = 1
