package span

import (
	"time"

	"github.com/beaconhq/pulse/pkg/config"
)

// ScopeFilter optionally narrows a rule's evaluation to a subset of the
// rollup-key space. Empty fields match anything.
type ScopeFilter struct {
	Service string          `json:"service,omitempty"`
	Model   string          `json:"model,omitempty"`
	Kind    config.SpanKind `json:"kind,omitempty"`
}

// Match reports whether key falls within this scope filter.
func (f ScopeFilter) Match(key RollupKey) bool {
	if f.Service != "" && f.Service != key.Service {
		return false
	}
	if f.Model != "" && f.Model != key.Model {
		return false
	}
	if f.Kind != "" && f.Kind != key.Kind {
		return false
	}
	return true
}

// RuleState names a rule's evaluation phase as of the last tick: idle,
// tripping or firing. The last evaluated/triggered instants and the
// consecutive-trip streak are the LastEvaluated, LastTriggered and
// ConsecutiveTrips fields of AlertRule.
type RuleState string

const (
	RuleStateIdle     RuleState = "idle"
	RuleStateTripping RuleState = "tripping"
	RuleStateFiring   RuleState = "firing"
)

// AlertRule is a named evaluable condition.
type AlertRule struct {
	RuleID ID     `json:"rule_id"`
	Name   string `json:"name"`

	Scope ScopeFilter `json:"scope"`

	ConditionKind config.AlertConditionKind `json:"condition_kind"`
	Metric        config.AlertMetric        `json:"metric"`
	Operator      config.ComparisonOperator `json:"operator"`
	Threshold     float64                   `json:"threshold"`

	WindowSeconds        int `json:"window_seconds"`
	EvaluationCadenceSec int `json:"evaluation_cadence_seconds"`
	ConsecutiveRequired  int `json:"consecutive_required"`

	Severity config.AlertSeverity `json:"severity"`
	Enabled  bool                 `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Per-rule runtime state, read-only snapshot as of the last tick.
	LastEvaluated    time.Time `json:"last_evaluated,omitzero"`
	LastTriggered    time.Time `json:"last_triggered,omitzero"`
	ConsecutiveTrips int       `json:"consecutive_trips"`
	State            RuleState `json:"state"`
	OpenEventID      *ID       `json:"open_event_id,omitempty"`
}

// AlertEventStatus mirrors config.AlertEventStatus for readability at call sites.
type AlertEventStatus = config.AlertEventStatus

// AlertEvent is an append-only transition record.
type AlertEvent struct {
	EventID ID `json:"event_id"`
	RuleID  ID `json:"rule_id"`

	TriggeredAt    time.Time  `json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	ObservedValue float64              `json:"observed_value"`
	Threshold     float64              `json:"threshold"`
	Severity      config.AlertSeverity `json:"severity"`
	Status        AlertEventStatus     `json:"status"`

	CorrelatedTraceID *ID    `json:"correlated_trace_id,omitempty"`
	DimensionKey      string `json:"dimension_key,omitempty"` // the rollup-key this evaluation matched, for scoped rules
}

// IsOpen reports whether the event has not yet resolved.
func (e AlertEvent) IsOpen() bool {
	return e.ResolvedAt == nil
}
