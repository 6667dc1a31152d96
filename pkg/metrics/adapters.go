package metrics

import (
	"time"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// PersistRecorder adapts Metrics to pkg/persist.Recorder.
type PersistRecorder struct{ M *Metrics }

func (r PersistRecorder) BatchCommitted(size int, d time.Duration) {
	r.M.PersisterBatchSize.Observe(float64(size))
	r.M.PersisterCommitTime.Observe(d.Seconds())
}

func (r PersistRecorder) Retried() {
	r.M.PersisterRetries.Inc()
}

// AlertRecorder adapts Metrics to pkg/alert.Recorder.
type AlertRecorder struct{ M *Metrics }

func (r AlertRecorder) Evaluation(ruleID span.ID) {
	r.M.AlertRuleEvaluations.WithLabelValues(string(ruleID)).Inc()
}

func (r AlertRecorder) Trip(ruleID span.ID) {
	r.M.AlertTrips.WithLabelValues(string(ruleID)).Inc()
}

func (r AlertRecorder) Event(severity config.AlertSeverity, status config.AlertEventStatus) {
	r.M.AlertEventsEmitted.WithLabelValues(string(severity), string(status)).Inc()
}
