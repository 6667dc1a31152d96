// Package alert implements C8, the alert engine: per-rule
// evaluation on a configurable cadence against aggregator snapshots, a
// trip-counter state machine (idle→tripping→firing→idle), and an
// append-only alert-event lifecycle (triggered→acknowledged?→resolved).
package alert

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/pulseerr"
	"github.com/beaconhq/pulse/pkg/span"
)

func marshalEvent(evt span.AlertEvent) ([]byte, error) {
	return json.Marshal(evt)
}

// EventSink is the durable-write surface the engine appends events
// through — satisfied by *persist.Persister's EnqueueEvent.
type EventSink interface {
	EnqueueEvent(evt span.AlertEvent) error
}

// Publisher is the realtime fan-out surface events are mirrored to —
// satisfied by pkg/bus.Bus.
type Publisher interface {
	Publish(subject string, payload []byte)
}

// Recorder receives observability events from the evaluator. Optional —
// satisfied by an adapter over pkg/metrics.
type Recorder interface {
	Evaluation(ruleID span.ID)
	Trip(ruleID span.ID)
	Event(severity config.AlertSeverity, status config.AlertEventStatus)
}

type noopRecorder struct{}

func (noopRecorder) Evaluation(span.ID)                              {}
func (noopRecorder) Trip(span.ID)                                    {}
func (noopRecorder) Event(config.AlertSeverity, config.AlertEventStatus) {}

// tickInterval is the engine's internal scheduling granularity: every
// enabled rule's own cadence is checked against this tick rather than
// registering one cron entry per rule, so rule CRUD (add/remove/edit
// cadence) never requires reprogramming the scheduler.
const tickInterval = time.Second

// Engine evaluates every enabled rule in RuleTable at its configured
// cadence and manages the resulting alert-event lifecycle.
type Engine struct {
	rules  *RuleTable
	source snapshotSource
	sink   EventSink
	pub    Publisher
	cfg    config.AlertConfig

	mu         sync.Mutex
	openEvents map[span.ID]span.AlertEvent // keyed by RuleID

	inFlightMu sync.Mutex
	inFlight   map[span.ID]time.Time // ruleID -> evaluation start, for orphan detection

	cron     *cron.Cron
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rec Recorder
}

// SetRecorder attaches a metrics Recorder. Call before Start.
func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	e.rec = r
}

// New constructs an Engine. source is typically *aggregate.Aggregator;
// sink is typically *persist.Persister; pub is typically *bus.InProc (or
// nil to disable event fan-out entirely).
func New(rules *RuleTable, source snapshotSource, sink EventSink, pub Publisher, cfg config.AlertConfig) *Engine {
	return &Engine{
		rules:      rules,
		source:     source,
		sink:       sink,
		pub:        pub,
		cfg:        cfg,
		openEvents: make(map[span.ID]span.AlertEvent),
		inFlight:   make(map[span.ID]time.Time),
		stopCh:     make(chan struct{}),
		rec:        noopRecorder{},
	}
}

// Start launches the evaluation scheduler. Per the design, the engine
// runs as its own stage and never shares state with other stages beyond
// reading the aggregator's published snapshot surface.
func (e *Engine) Start(ctx context.Context) {
	e.cron = cron.New()
	_, err := e.cron.AddFunc("@every 1s", func() { e.tick(ctx) })
	if err != nil {
		slog.Error("alert: failed to schedule evaluation ticker", "error", err)
		return
	}
	e.cron.Start()

	e.wg.Add(1)
	go e.runOrphanWatchdog()
}

// Stop halts the scheduler and waits for any in-flight tick to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()

	if e.cron == nil {
		return
	}
	stopCtx := e.cron.Stop()
	<-stopCtx.Done()
}

// runOrphanWatchdog periodically scans for rule evaluations that started
// but never reported completion within 2x their evaluation deadline — the
// evaluation-side analog of a stuck worker. It can't forcibly cancel a
// hung goroutine (Go has no such primitive), so it logs the stall and
// clears the bookkeeping entry so the rule isn't permanently treated as
// in-flight; the stray goroutine, if it ever returns, finds its entry gone
// and is a no-op.
func (e *Engine) runOrphanWatchdog() {
	defer e.wg.Done()

	deadline := time.Duration(e.cfg.EvaluationDeadlineMS) * time.Millisecond
	if deadline <= 0 {
		deadline = time.Second
	}
	ticker := time.NewTicker(deadline)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.detectOrphanedEvaluations(2 * deadline)
		}
	}
}

func (e *Engine) detectOrphanedEvaluations(threshold time.Duration) {
	now := time.Now().UTC()
	var stuck []span.ID

	e.inFlightMu.Lock()
	for ruleID, started := range e.inFlight {
		if now.Sub(started) > threshold {
			stuck = append(stuck, ruleID)
			delete(e.inFlight, ruleID)
		}
	}
	e.inFlightMu.Unlock()

	for _, ruleID := range stuck {
		slog.Warn("alert: rule evaluation exceeded deadline, treating as orphaned", "rule_id", ruleID, "threshold", threshold)
	}
}

func (e *Engine) markEvalStarted(ruleID span.ID, now time.Time) {
	e.inFlightMu.Lock()
	e.inFlight[ruleID] = now
	e.inFlightMu.Unlock()
}

func (e *Engine) markEvalDone(ruleID span.ID) {
	e.inFlightMu.Lock()
	delete(e.inFlight, ruleID)
	e.inFlightMu.Unlock()
}

// tick evaluates every enabled rule whose cadence has elapsed. Each
// rule's evaluation is isolated: a panic or fault in one rule is
// recovered, logged as a pulseerr.RuleEvalFault, and never prevents the
// remaining rules in the same tick from evaluating (the design:
// "failure isolation per-rule").
func (e *Engine) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, rule := range e.rules.Snapshot() {
		if !rule.Enabled {
			continue
		}
		if rule.LastEvaluated.IsZero() {
			e.evaluateRuleSafely(ctx, rule, now)
			continue
		}
		due := rule.LastEvaluated.Add(time.Duration(rule.EvaluationCadenceSec) * time.Second)
		if !now.Before(due) {
			e.evaluateRuleSafely(ctx, rule, now)
		}
	}
}

func (e *Engine) evaluateRuleSafely(ctx context.Context, rule span.AlertRule, now time.Time) {
	deadline := time.Duration(e.cfg.EvaluationDeadlineMS) * time.Millisecond
	_, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	e.markEvalStarted(rule.RuleID, now)
	defer e.markEvalDone(rule.RuleID)

	defer func() {
		if r := recover(); r != nil {
			fault := pulseerr.New(pulseerr.RuleEvalFault, "alert", nil)
			slog.Error("alert: rule evaluation panicked, isolating", "rule_id", rule.RuleID, "recover", r, "kind", fault.Kind)
		}
	}()

	e.evaluateRule(rule, now)
}

func (e *Engine) evaluateRule(rule span.AlertRule, now time.Time) {
	res := evaluate(e.source, rule, now, e.cfg.RateChangeEpsilon)
	e.rec.Evaluation(rule.RuleID)

	updated := rule
	updated.LastEvaluated = now
	if res.tripped {
		updated.ConsecutiveTrips++
		e.rec.Trip(rule.RuleID)
	} else {
		updated.ConsecutiveTrips = 0
	}

	switch {
	case res.tripped && updated.ConsecutiveTrips >= updated.ConsecutiveRequired:
		if updated.State != span.RuleStateFiring {
			evt := e.openEvent(rule, res, now)
			updated.State = span.RuleStateFiring
			updated.OpenEventID = &evt.EventID
			updated.LastTriggered = now
		}
		// else: already firing — the design "while condition holds, no
		// new event appended."
	case res.tripped:
		updated.State = span.RuleStateTripping
	default:
		if updated.State == span.RuleStateFiring {
			e.resolveEvent(rule, now)
			updated.OpenEventID = nil
		}
		updated.State = span.RuleStateIdle
	}

	e.rules.updateRuntime(updated)
}

func (e *Engine) openEvent(rule span.AlertRule, res evalResult, now time.Time) span.AlertEvent {
	evt := span.AlertEvent{
		EventID:       span.NewID(),
		RuleID:        rule.RuleID,
		TriggeredAt:   now,
		ObservedValue: res.observedValue,
		Threshold:     rule.Threshold,
		Severity:      rule.Severity,
		Status:        config.EventTriggered,
		DimensionKey:  rule.Name,
	}

	e.mu.Lock()
	e.openEvents[rule.RuleID] = evt
	e.mu.Unlock()

	e.emit(evt)
	return evt
}

func (e *Engine) resolveEvent(rule span.AlertRule, now time.Time) {
	e.mu.Lock()
	evt, ok := e.openEvents[rule.RuleID]
	if ok {
		delete(e.openEvents, rule.RuleID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	evt.ResolvedAt = &now
	evt.Status = config.EventResolved
	e.emit(evt)
}

// AcknowledgeEvent marks an open event acknowledged — an external action
// that does not close the event.
func (e *Engine) AcknowledgeEvent(eventID span.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for ruleID, evt := range e.openEvents {
		if evt.EventID != eventID {
			continue
		}
		now := time.Now().UTC()
		evt.AcknowledgedAt = &now
		evt.Status = config.EventAcknowledged
		e.openEvents[ruleID] = evt
		e.emit(evt)
		return true
	}
	return false
}

func (e *Engine) emit(evt span.AlertEvent) {
	e.rec.Event(evt.Severity, evt.Status)
	if e.sink != nil {
		if err := e.sink.EnqueueEvent(evt); err != nil {
			slog.Warn("alert: failed to enqueue event for persistence", "event_id", evt.EventID, "error", err)
		}
	}
	if e.pub != nil {
		if payload, err := marshalEvent(evt); err == nil {
			e.pub.Publish("alert:"+string(evt.RuleID), payload)
		}
	}
}
