// Package controller implements C9, the ingestion controller (the design
// §4.9): it wires every pipeline stage together behind bounded channels,
// owns the one config.Manager snapshot every stage reads through, and
// sequences startup and graceful shutdown. Nothing outside this package
// knows the full stage order; receivers only know the Sink interface, and
// every other stage only knows its immediate collaborators.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beaconhq/pulse/pkg/aggregate"
	"github.com/beaconhq/pulse/pkg/alert"
	"github.com/beaconhq/pulse/pkg/bus"
	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/cost"
	"github.com/beaconhq/pulse/pkg/enrich"
	"github.com/beaconhq/pulse/pkg/metrics"
	"github.com/beaconhq/pulse/pkg/persist"
	"github.com/beaconhq/pulse/pkg/pulseerr"
	"github.com/beaconhq/pulse/pkg/realtime"
	"github.com/beaconhq/pulse/pkg/receiver"
	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/store"
	"github.com/beaconhq/pulse/pkg/validator"
)

// defaultShutdownGrace is used when SystemConfig.ShutdownGraceMS is unset,
// "shutdown deadline (default 30s)".
const defaultShutdownGrace = 30 * time.Second

// Controller owns the running pipeline: validator, enricher, cost
// calculator, aggregator, persister, realtime fan-out, and alert engine,
// fed by one or more receiver.Server instances that call Accept.
type Controller struct {
	cfgMgr *config.Manager

	validator atomic.Pointer[validator.Validator]
	enricher  atomic.Pointer[enrich.Enricher]
	costCalc  *cost.Calculator
	aggregator *aggregate.Aggregator
	persister  *persist.Persister
	fanout     *realtime.Fanout
	bus        *bus.InProc
	rules      *alert.RuleTable
	engine     *alert.Engine
	recv       *receiver.Server
	counters   *receiver.Counters
	metrics    *metrics.Metrics

	traceIdx *traceIndex

	ingestCh chan *span.Span
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	degraded atomic.Bool
}

// New constructs a Controller from an initial configuration and a durable
// store. The Controller owns construction of every in-process stage;
// callers only supply the collaborator that crosses process boundaries
// (the store). The pieces shared with the HTTP control plane (the rule
// table, the cost calculator, the bus) are built here and exposed through
// accessors.
func New(cfg *config.Config, st store.Store) *Controller {
	cfgMgr := config.NewManager(cfg)

	c := &Controller{
		cfgMgr:   cfgMgr,
		costCalc: cost.New(cfg.Cost.PrefixModelMatch),
		bus:      bus.NewInProc(),
		rules:    alert.NewRuleTable(),
		traceIdx: newTraceIndex(),
		ingestCh: make(chan *span.Span, cfg.Pipeline.QueueDepthReceiver),
		stopCh:   make(chan struct{}),
		counters: &receiver.Counters{},
		metrics:  metrics.New(),
	}

	c.validator.Store(validator.New(0))
	c.enricher.Store(enrich.New(cfg.Enricher))
	c.aggregator = aggregate.New(cfg.Aggregator)
	c.fanout = realtime.New(c.bus)

	c.persister = persist.New(st, cfg.Persister, cfg.Pipeline.QueueDepthPersister, c.onDegrade)
	c.persister.SetRecorder(metrics.PersistRecorder{M: c.metrics})

	c.engine = alert.New(c.rules, c.aggregator, c.persister, c.bus, cfg.Alert)
	c.engine.SetRecorder(metrics.AlertRecorder{M: c.metrics})

	pushTimeout := time.Duration(cfg.Receiver.PushTimeoutMS) * time.Millisecond
	c.recv = receiver.New(c, c.counters, pushTimeout)

	return c
}

// Metrics exposes the Prometheus collectors for mounting behind an HTTP
// /metrics endpoint.
func (c *Controller) Metrics() *metrics.Metrics { return c.metrics }

// Rules exposes the rule table for the control API's CRUD surface.
func (c *Controller) Rules() *alert.RuleTable { return c.rules }

// CostCalculator exposes the calculator for the control API's pricing
// reload surface.
func (c *Controller) CostCalculator() *cost.Calculator { return c.costCalc }

// Bus exposes the realtime bus so the control API can front it with a
// WebSocket handler.
func (c *Controller) Bus() *bus.InProc { return c.bus }

// AlertEngine exposes the engine for acknowledge-event requests.
func (c *Controller) AlertEngine() *alert.Engine { return c.engine }

func (c *Controller) onDegrade(degraded bool) {
	c.degraded.Store(degraded)
	if degraded {
		c.metrics.PersisterDegraded.Set(1)
		slog.Warn("controller: entering degraded mode, persistence failing")
	} else {
		c.metrics.PersisterDegraded.Set(0)
		slog.Info("controller: recovered from degraded mode")
	}
}

// Accept implements receiver.Sink. It never blocks: a full ingest queue
// reports pulseerr.Overloaded back to the caller.
func (c *Controller) Accept(_ context.Context, s *span.Span) error {
	s.ReceivedAt = time.Now().UTC()
	select {
	case c.ingestCh <- s:
		return nil
	default:
		return pulseerr.New(pulseerr.Overloaded, "controller", nil)
	}
}

// Start launches every background stage and both receiver ingress
// surfaces. It returns once startup has been scheduled; ingress errors
// after that point are logged, not returned, following the usual
// fire-and-forget goroutine pattern for long-running servers.
func (c *Controller) Start(ctx context.Context) {
	cfg := c.cfgMgr.Snapshot()

	c.persister.Start(ctx)
	c.engine.Start(ctx)

	workers := cfg.Pipeline.CostWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.runWorker(ctx)
	}

	c.wg.Add(1)
	go c.runEvictionLoop(ctx, cfg)

	go func() {
		if err := c.recv.ServeGRPC(cfg.Receiver.GRPCAddr); err != nil {
			slog.Error("controller: grpc receiver stopped", "error", err)
		}
	}()
	go func() {
		if err := c.recv.ServeDatagram(ctx, cfg.Receiver.DatagramAddr); err != nil && ctx.Err() == nil {
			slog.Error("controller: datagram receiver stopped", "error", err)
		}
	}()

	slog.Info("controller: pipeline started",
		"grpc_addr", cfg.Receiver.GRPCAddr,
		"datagram_addr", cfg.Receiver.DatagramAddr,
		"workers", workers)
}

// runWorker drains the ingest queue, running every accepted span through
// validation, enrichment, cost calculation, aggregation, persistence
// enqueue, and realtime fan-out — in that order
func (c *Controller) runWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case s, ok := <-c.ingestCh:
			if !ok {
				return
			}
			c.processOne(s)
		case <-ctx.Done():
			c.drainRemaining()
			return
		}
	}
}

// drainRemaining processes whatever is already buffered in the ingest
// channel without blocking for more — used when the caller's context is
// cancelled out from under a running worker.
func (c *Controller) drainRemaining() {
	for {
		select {
		case s, ok := <-c.ingestCh:
			if !ok {
				return
			}
			c.processOne(s)
		default:
			return
		}
	}
}

func (c *Controller) processOne(s *span.Span) {
	v := c.validator.Load()
	transport := string(s.Transport)

	if err := v.Validate(s); err != nil {
		c.metrics.SpansRejected.WithLabelValues(transport).Inc()
		c.recordRejectReason(err)
		return
	}

	if s.ParentSpanID != nil {
		if parentTrace, ok := c.traceIdx.lookup(*s.ParentSpanID); ok {
			if err := v.ValidateParentTrace(s, parentTrace); err != nil {
				c.metrics.SpansRejected.WithLabelValues(transport).Inc()
				c.recordRejectReason(err)
				return
			}
		}
		// Parent not yet observed (out-of-order arrival, or from a
		// different receiver instance entirely): admitted without the
		// OrphanParent check rather than held back
		// preference for availability over strict ordering.
	}
	c.traceIdx.record(s.SpanID, s.TraceID)

	c.enricher.Load().Enrich(s)

	if !c.costCalc.Apply(s) {
		c.metrics.PricingMisses.Inc()
		slog.Debug("controller: no pricing match", "span_id", s.SpanID)
	}

	c.aggregator.Observe(s)

	if err := c.persister.Enqueue(s); err != nil {
		slog.Warn("controller: span dropped from persistence", "span_id", s.SpanID, "error", err)
	}
	c.fanout.Publish(s)

	c.metrics.SpansAccepted.WithLabelValues(transport).Inc()
}

// recordRejectReason extracts the validator's fine-grained RejectReason
// from a pulseerr.Error, if present, and increments the matching counter.
func (c *Controller) recordRejectReason(err error) {
	var pe *pulseerr.Error
	if e, ok := err.(*pulseerr.Error); ok {
		pe = e
	}
	if pe == nil || pe.Reason == "" {
		return
	}
	c.metrics.ValidatorRejections.WithLabelValues(pe.Reason).Inc()
}

// runEvictionLoop periodically evicts aggregator windows older than the
// retention configured for C5.
func (c *Controller) runEvictionLoop(ctx context.Context, cfg *config.Config) {
	defer c.wg.Done()
	interval := time.Duration(cfg.Aggregator.WindowSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.aggregator.Evict(time.Now().UTC())
			c.metrics.AggregatorBucketsActive.Set(float64(len(c.aggregator.Snapshot())))
			c.metrics.QueueDepth.WithLabelValues("ingest").Set(float64(len(c.ingestCh)))
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// Shutdown runs the ordered sequence from the design: stop receivers,
// drain the validator/enricher/cost/aggregate stages, flush the
// persister's final batch, cancel the alert engine, then close the
// realtime bus. Records still in flight past the shutdown deadline are
// logged and abandoned rather than blocking shutdown indefinitely.
func (c *Controller) Shutdown(ctx context.Context) {
	cfg := c.cfgMgr.Snapshot()
	grace := time.Duration(cfg.System.ShutdownGraceMS) * time.Millisecond
	if grace <= 0 {
		grace = defaultShutdownGrace
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	// 1. Stop receivers: no new spans are admitted past this point.
	c.recv.Shutdown()

	// 2. Drain validator/enricher/cost/aggregate: close the ingest queue
	// and let workers finish whatever is already buffered.
	c.stopOnce.Do(func() { close(c.stopCh) })
	close(c.ingestCh)

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.Warn("controller: shutdown deadline exceeded, abandoning in-flight spans",
			"pending", len(c.ingestCh))
	}

	// 3. Flush the persister's final batch.
	c.persister.Stop()

	// 4. Cancel the alert engine.
	c.engine.Stop()

	// 5. Close the realtime bus.
	c.bus.Close()

	slog.Info("controller: shutdown complete")
}

// Reload atomically swaps in a new configuration. Stateless stages
// (validator, enricher) are rebuilt from the new snapshot and hot-swapped;
// stateful daemons (aggregator, persister, alert engine, receivers) keep
// running under their original tunables until the next process restart —
// the design requires in-flight records to finish under the snapshot they
// started with, not that every stage be restartable mid-flight.
func (c *Controller) Reload(cfg *config.Config) {
	c.cfgMgr.Reload(cfg)
	c.validator.Store(validator.New(0))
	c.enricher.Store(enrich.New(cfg.Enricher))
	slog.Info("controller: configuration reloaded")
}
