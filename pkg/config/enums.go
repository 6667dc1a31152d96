package config

// SpanKind identifies what kind of operation a span represents.
type SpanKind string

// Span-kind constants. Exhaustive — the validator rejects anything else.
const (
	SpanKindAgentStep  SpanKind = "agent_step"
	SpanKindLLMCall    SpanKind = "llm_call"
	SpanKindToolCall   SpanKind = "tool_call"
	SpanKindFileRead   SpanKind = "file_read"
	SpanKindFileWrite  SpanKind = "file_write"
	SpanKindRetrieval  SpanKind = "retrieval"
	SpanKindEmbedding  SpanKind = "embedding"
	SpanKindChain      SpanKind = "chain"
	SpanKindVerify     SpanKind = "verification"
	SpanKindOther      SpanKind = "other"
)

// IsValid reports whether k is one of the recognized span kinds.
func (k SpanKind) IsValid() bool {
	switch k {
	case SpanKindAgentStep, SpanKindLLMCall, SpanKindToolCall, SpanKindFileRead,
		SpanKindFileWrite, SpanKindRetrieval, SpanKindEmbedding, SpanKindChain,
		SpanKindVerify, SpanKindOther:
		return true
	default:
		return false
	}
}

// SpanStatus is the terminal or in-flight state of a span.
type SpanStatus string

const (
	SpanStatusRunning   SpanStatus = "running"
	SpanStatusOK        SpanStatus = "ok"
	SpanStatusError     SpanStatus = "error"
	SpanStatusCancelled SpanStatus = "cancelled"
	SpanStatusTimeout   SpanStatus = "timeout"
)

// IsValid reports whether s is one of the recognized span statuses.
func (s SpanStatus) IsValid() bool {
	switch s {
	case SpanStatusRunning, SpanStatusOK, SpanStatusError, SpanStatusCancelled, SpanStatusTimeout:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status represents a finished span.
func (s SpanStatus) IsTerminal() bool {
	return s != SpanStatusRunning
}

// TransportKind identifies which ingress surface admitted a span.
type TransportKind string

const (
	TransportUnary     TransportKind = "unary"
	TransportStreaming TransportKind = "streaming"
	TransportDatagram  TransportKind = "datagram"
)

// RejectReason tags why the Validator rejected a span.
type RejectReason string

const (
	RejectBadIdentity    RejectReason = "BadIdentity"
	RejectTimeOrder      RejectReason = "TimeOrder"
	RejectOrphanParent   RejectReason = "OrphanParent"
	RejectTokenBudget    RejectReason = "TokenBudget"
	RejectAttributeShape RejectReason = "AttributeShape"
	RejectUnknownKind    RejectReason = "UnknownKind"
)

// AlertConditionKind is the first-class condition-kind set (the Open Question
// in the design resolves here: the older condition_type set of {threshold,
// anomaly, rate_change, absence} is authoritative; the newer metric-shortcut
// set becomes preset builders over AlertRule rather than distinct kinds — see
// pkg/alert/presets.go).
type AlertConditionKind string

const (
	ConditionThreshold  AlertConditionKind = "threshold"
	ConditionRateChange AlertConditionKind = "rate_change"
	ConditionAbsence    AlertConditionKind = "absence"
	ConditionAnomaly    AlertConditionKind = "anomaly"
)

// IsValid reports whether c is a recognized condition kind.
func (c AlertConditionKind) IsValid() bool {
	switch c {
	case ConditionThreshold, ConditionRateChange, ConditionAbsence, ConditionAnomaly:
		return true
	default:
		return false
	}
}

// AlertMetric names the derived metric a rule evaluates.
type AlertMetric string

const (
	MetricErrorRate   AlertMetric = "error_rate"
	MetricRequestRate AlertMetric = "request_rate"
	MetricLatencyP50  AlertMetric = "latency_p50"
	MetricLatencyP90  AlertMetric = "latency_p90"
	MetricLatencyP95  AlertMetric = "latency_p95"
	MetricLatencyP99  AlertMetric = "latency_p99"
	MetricCostSum     AlertMetric = "cost_sum"
	MetricTokenUsage  AlertMetric = "token_usage"
	MetricAbsence     AlertMetric = "absence"
)

// IsValid reports whether m is a recognized metric name.
func (m AlertMetric) IsValid() bool {
	switch m {
	case MetricErrorRate, MetricRequestRate, MetricLatencyP50, MetricLatencyP90,
		MetricLatencyP95, MetricLatencyP99, MetricCostSum, MetricTokenUsage, MetricAbsence:
		return true
	default:
		return false
	}
}

// ComparisonOperator is a threshold-condition comparator.
type ComparisonOperator string

const (
	OpGreaterThan   ComparisonOperator = ">"
	OpGreaterEqual  ComparisonOperator = ">="
	OpLessThan      ComparisonOperator = "<"
	OpLessEqual     ComparisonOperator = "<="
	OpEqual         ComparisonOperator = "="
	OpNotEqual      ComparisonOperator = "!="
)

// IsValid reports whether op is a recognized comparison operator.
func (op ComparisonOperator) IsValid() bool {
	switch op {
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual, OpEqual, OpNotEqual:
		return true
	default:
		return false
	}
}

// Compare applies op to (value, threshold).
func (op ComparisonOperator) Compare(value, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessThan:
		return value < threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	case OpNotEqual:
		return value != threshold
	default:
		return false
	}
}

// AlertSeverity ranks how urgent a triggered alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// IsValid reports whether s is a recognized severity.
func (s AlertSeverity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// AlertEventStatus is the lifecycle state of an AlertEvent.
type AlertEventStatus string

const (
	EventTriggered   AlertEventStatus = "triggered"
	EventAcknowledged AlertEventStatus = "acknowledged"
	EventResolved    AlertEventStatus = "resolved"
)
