package controlapi

import (
	"fmt"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// toRule validates and converts the wire request into a span.AlertRule.
// Runtime fields are left zero — RuleTable.Upsert preserves whatever
// runtime state already exists for id, so a CRUD edit never resets an
// in-progress trip streak.
func (r ruleRequest) toRule(id span.ID) (span.AlertRule, error) {
	conditionKind := config.AlertConditionKind(r.ConditionKind)
	if !conditionKind.IsValid() {
		return span.AlertRule{}, fmt.Errorf("unrecognized condition_kind %q", r.ConditionKind)
	}
	metric := config.AlertMetric(r.Metric)
	if !metric.IsValid() {
		return span.AlertRule{}, fmt.Errorf("unrecognized metric %q", r.Metric)
	}
	operator := config.ComparisonOperator(r.Operator)
	if !operator.IsValid() {
		return span.AlertRule{}, fmt.Errorf("unrecognized operator %q", r.Operator)
	}
	severity := config.AlertSeverity(r.Severity)
	if !severity.IsValid() {
		return span.AlertRule{}, fmt.Errorf("unrecognized severity %q", r.Severity)
	}
	if r.Scope.Kind != "" && !r.Scope.Kind.IsValid() {
		return span.AlertRule{}, fmt.Errorf("unrecognized scope.kind %q", r.Scope.Kind)
	}
	if r.WindowSeconds <= 0 {
		return span.AlertRule{}, fmt.Errorf("window_seconds must be positive")
	}
	if r.EvaluationCadenceSec <= 0 {
		return span.AlertRule{}, fmt.Errorf("evaluation_cadence_seconds must be positive")
	}
	if r.ConsecutiveRequired <= 0 {
		return span.AlertRule{}, fmt.Errorf("consecutive_required must be positive")
	}

	return span.AlertRule{
		RuleID:               id,
		Name:                 r.Name,
		Scope:                r.Scope,
		ConditionKind:        conditionKind,
		Metric:               metric,
		Operator:             operator,
		Threshold:            r.Threshold,
		WindowSeconds:        r.WindowSeconds,
		EvaluationCadenceSec: r.EvaluationCadenceSec,
		ConsecutiveRequired:  r.ConsecutiveRequired,
		Severity:             severity,
		Enabled:              r.Enabled,
	}, nil
}
