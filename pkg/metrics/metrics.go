// Package metrics exposes the pipeline's observable counters
// as Prometheus collectors, following the r3e-network service_layer
// repo's metrics.Metrics shape: one struct of pre-registered collectors,
// constructed once at startup and threaded into every stage that needs
// to record against it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the pipeline records against.
type Metrics struct {
	SpansAccepted *prometheus.CounterVec // transport
	SpansRejected *prometheus.CounterVec // transport
	DatagramOversize prometheus.Counter

	ValidatorRejections *prometheus.CounterVec // reason

	PricingMisses prometheus.Counter

	AggregatorBucketsActive prometheus.Gauge

	QueueDepth *prometheus.GaugeVec // stage

	PersisterBatchSize    prometheus.Histogram
	PersisterCommitTime   prometheus.Histogram
	PersisterRetries      prometheus.Counter
	PersisterDegraded     prometheus.Gauge

	AlertRuleEvaluations *prometheus.CounterVec // rule_id
	AlertTrips           *prometheus.CounterVec // rule_id
	AlertEventsEmitted   *prometheus.CounterVec // severity, status

	registry *prometheus.Registry
}

// Registry returns the registry this Metrics was registered against, for
// cmd/pulsed to mount behind promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// New constructs a Metrics against its own fresh registry. Each Controller
// owns one Metrics instance; using prometheus.DefaultRegisterer here would
// panic on the second Controller constructed in the same process (tests
// build several), so every instance gets an isolated registry instead.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg)
}

// NewWithRegistry constructs a Metrics registered against registry,
// allowing a caller to supply its own registry (a scratch one in tests).
// New passes a fresh prometheus.NewRegistry(); the process-global
// prometheus.DefaultRegisterer is never used.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		SpansAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_spans_accepted_total",
			Help: "Spans accepted by the receiver, per ingress transport.",
		}, []string{"transport"}),
		SpansRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_spans_rejected_total",
			Help: "Spans rejected by the receiver or validator, per ingress transport.",
		}, []string{"transport"}),
		DatagramOversize: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_datagram_oversize_total",
			Help: "UDP datagrams dropped for exceeding the configured size limit.",
		}),
		ValidatorRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_validator_rejections_total",
			Help: "Span rejections by validator RejectReason.",
		}, []string{"reason"}),
		PricingMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_pricing_misses_total",
			Help: "LLM-call spans with no matching pricing row.",
		}),
		AggregatorBucketsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_aggregator_buckets_active",
			Help: "Rolling-window aggregate buckets currently retained.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_queue_depth",
			Help: "Current depth of a bounded pipeline stage queue.",
		}, []string{"stage"}),
		PersisterBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_persister_batch_size",
			Help:    "Span count per committed persister batch.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
		}),
		PersisterCommitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_persister_commit_duration_seconds",
			Help:    "Time to commit one persister batch or event.",
			Buckets: prometheus.DefBuckets,
		}),
		PersisterRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_persister_retries_total",
			Help: "Retry attempts made by the persister's commit loop.",
		}),
		PersisterDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_persister_degraded",
			Help: "1 when the persister is in degraded mode, 0 otherwise.",
		}),
		AlertRuleEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_alert_rule_evaluations_total",
			Help: "Rule evaluations performed by the alert engine.",
		}, []string{"rule_id"}),
		AlertTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_alert_rule_trips_total",
			Help: "Rule evaluations that tripped their condition.",
		}, []string{"rule_id"}),
		AlertEventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_alert_events_emitted_total",
			Help: "Alert events emitted, by severity and lifecycle status.",
		}, []string{"severity", "status"}),
	}

	if registry != nil {
		registry.MustRegister(
			m.SpansAccepted, m.SpansRejected, m.DatagramOversize,
			m.ValidatorRejections, m.PricingMisses, m.AggregatorBucketsActive,
			m.QueueDepth, m.PersisterBatchSize, m.PersisterCommitTime,
			m.PersisterRetries, m.PersisterDegraded,
			m.AlertRuleEvaluations, m.AlertTrips, m.AlertEventsEmitted,
		)
	}
	m.registry = registry

	return m
}
