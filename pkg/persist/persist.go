// Package persist implements C6, the durable-store sink.
// Spans are batched by size or timeout, written through the store.Store
// batch-upsert path, and retried with bounded exponential backoff; a
// store that keeps failing past the retry cap trips degraded mode, in
// which persistence halts but acceptance and realtime fan-out continue.
// Alert-event writes travel through a second, independent queue so a
// burst of span writes can never head-of-line block an event write.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/pulseerr"
	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/store"
)

// DegradeListener is notified when the persister trips into or recovers
// from degraded mode. The controller wires it to its degraded flag and
// the persister-degraded gauge, which the health probe and the metrics
// endpoint report; nothing is published on the realtime bus.
type DegradeListener func(degraded bool)

// Recorder receives observability events from the commit loop. Optional —
// a Persister with no Recorder set simply doesn't record. Satisfied by an
// adapter over pkg/metrics so this package never imports a specific
// metrics backend directly.
type Recorder interface {
	BatchCommitted(size int, duration time.Duration)
	Retried()
}

type noopRecorder struct{}

func (noopRecorder) BatchCommitted(int, time.Duration) {}
func (noopRecorder) Retried()                          {}

// Persister batches and commits spans and alert events to a Store. Start
// it once; Stop drains in-flight batches before returning, following the
// same stopCh/sync.Once/WaitGroup shutdown shape the worker pool pattern
// in this codebase's lineage always uses.
type Persister struct {
	store store.Store
	cfg   config.PersisterConfig

	spanIn  chan *span.Span
	eventIn chan span.AlertEvent

	onDegrade DegradeListener
	degraded  atomic.Bool
	rec       Recorder

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// SetRecorder attaches a metrics Recorder. Safe to call once before Start;
// not safe to call concurrently with a running persister.
func (p *Persister) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	p.rec = r
}

// New constructs a Persister. queueDepth sizes both input channels;
// the design treats every inter-stage channel as a bounded MPSC queue
// whose fill is the backpressure signal propagated to upstream stages.
func New(st store.Store, cfg config.PersisterConfig, queueDepth int, onDegrade DegradeListener) *Persister {
	return &Persister{
		store:     st,
		cfg:       cfg,
		spanIn:    make(chan *span.Span, queueDepth),
		eventIn:   make(chan span.AlertEvent, queueDepth),
		onDegrade: onDegrade,
		rec:       noopRecorder{},
		stopCh:    make(chan struct{}),
	}
}

// Enqueue submits a span for durable persistence. It returns
// pulseerr.Overloaded if the input channel is full rather than blocking
// the caller indefinitely — the caller (the controller) is expected to
// treat this as backpressure and reject further intake
func (p *Persister) Enqueue(s *span.Span) error {
	select {
	case p.spanIn <- s:
		return nil
	default:
		return pulseerr.New(pulseerr.Overloaded, "persist", nil)
	}
}

// EnqueueEvent submits an alert event for durable persistence, through
// the queue kept separate from span writes.
func (p *Persister) EnqueueEvent(evt span.AlertEvent) error {
	select {
	case p.eventIn <- evt:
		return nil
	default:
		return pulseerr.New(pulseerr.Overloaded, "persist", nil)
	}
}

// Degraded reports whether the persister has halted durable writes after
// exhausting its retry budget against the store.
func (p *Persister) Degraded() bool {
	return p.degraded.Load()
}

// Start launches the span batch-builder and the event batch-builder as
// independent goroutines.
func (p *Persister) Start(ctx context.Context) {
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.runSpanLoop(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.runEventLoop(ctx)
	}()
}

// Stop signals both loops to drain their current batch and exit, then
// waits for them to finish. It does not enforce the controller's
// shutdown deadline itself — the design assigns that to the
// controller, which calls Stop from within its own bounded context.
func (p *Persister) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Persister) runSpanLoop(ctx context.Context) {
	timeout := time.Duration(p.cfg.BatchTimeoutMS) * time.Millisecond
	batch := make([]*span.Span, 0, p.cfg.BatchSize)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.commitSpanBatch(ctx, batch)
		batch = make([]*span.Span, 0, p.cfg.BatchSize)
	}

	for {
		select {
		case s := <-p.spanIn:
			batch = append(batch, s)
			if len(batch) >= p.cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(timeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(timeout)
		case <-p.stopCh:
			// Drain whatever is already queued, in batches, before exiting.
			for {
				select {
				case s := <-p.spanIn:
					batch = append(batch, s)
					if len(batch) >= p.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case <-ctx.Done():
			flush()
			return
		}
	}
}

func (p *Persister) runEventLoop(ctx context.Context) {
	for {
		select {
		case evt := <-p.eventIn:
			p.commitEvent(ctx, evt)
		case <-p.stopCh:
			// Drain whatever is already queued before exiting; alert
			// events are low-volume enough that a non-blocking drain
			// loop here is sufficient.
			for {
				select {
				case evt := <-p.eventIn:
					p.commitEvent(ctx, evt)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// commitSpanBatch commits batch with retry, preserving within-batch
// (within-trace) order by handing the whole slice to the store in one
// call rather than splitting it across retries.
func (p *Persister) commitSpanBatch(ctx context.Context, batch []*span.Span) {
	start := time.Now()
	op := func(cctx context.Context) error {
		commitTimeout := time.Duration(p.cfg.CommitTimeoutMS) * time.Millisecond
		wctx, cancel := context.WithTimeout(cctx, commitTimeout)
		defer cancel()
		_, err := p.store.WriteSpans(wctx, batch)
		return err
	}
	err := p.commit(ctx, op)
	p.rec.BatchCommitted(len(batch), time.Since(start))
	if err != nil {
		p.trip(len(batch))
		return
	}
	p.recover()
}

func (p *Persister) commitEvent(ctx context.Context, evt span.AlertEvent) {
	op := func(cctx context.Context) error {
		commitTimeout := time.Duration(p.cfg.CommitTimeoutMS) * time.Millisecond
		wctx, cancel := context.WithTimeout(cctx, commitTimeout)
		defer cancel()
		_, err := p.store.WriteAlertEvent(wctx, evt)
		return err
	}
	if p.commit(ctx, op) != nil {
		p.trip(1)
		return
	}
	p.recover()
}

// commit dispatches to the retrying path while healthy, or a single
// bare attempt while already degraded —, persistence
// halts on StoreFatal rather than burning retry budget indefinitely;
// a lone probe attempt is still made each batch so the persister can
// self-heal the moment the store recovers.
func (p *Persister) commit(ctx context.Context, op func(context.Context) error) error {
	if p.degraded.Load() {
		return op(ctx)
	}
	return p.commitWithRetry(ctx, op)
}

// commitWithRetry retries op with bounded exponential backoff and
// jitter, making at most cfg.RetryMaxAttempts attempts in total: "initial
// 50ms, max 5s, jitter, cap 10 attempts" realized generically off the
// configured base/cap/attempts rather than hardcoded constants.
func (p *Persister) commitWithRetry(ctx context.Context, op func(context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(p.cfg.RetryBaseMS) * time.Millisecond
	bo.MaxInterval = time.Duration(p.cfg.RetryCapMS) * time.Millisecond
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not elapsed wall time

	// WithMaxRetries counts retries after the first attempt.
	retries := p.cfg.RetryMaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	withCap := backoff.WithMaxRetries(bo, uint64(retries))

	var lastErr error
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		p.rec.Retried()
		slog.Warn("persist: commit attempt failed, retrying", "attempt", attempt, "error", lastErr)
		return lastErr
	}, withCap)

	if err != nil {
		return lastErr
	}
	return nil
}

func isRetryable(err error) bool {
	var pe *pulseerr.Error
	if ok := asPulseErr(err, &pe); ok {
		return pulseerr.Retryable(pe.Kind)
	}
	// An error from the store that isn't our own taxonomy (e.g. a raw
	// pgx error) is treated as transient-retryable by default — the
	// store is expected to wrap its own terminal failures.
	return true
}

func asPulseErr(err error, target **pulseerr.Error) bool {
	for err != nil {
		if pe, ok := err.(*pulseerr.Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// trip enters degraded mode: persistence halts for this call, and the
// listener is notified once on the idle→degraded transition.
func (p *Persister) trip(lost int) {
	if p.degraded.CompareAndSwap(false, true) {
		slog.Error("persist: commit failed permanently, entering degraded mode", "records_lost", lost)
		if p.onDegrade != nil {
			p.onDegrade(true)
		}
	}
}

// recover exits degraded mode on the next successful commit.
func (p *Persister) recover() {
	if p.degraded.CompareAndSwap(true, false) && p.onDegrade != nil {
		p.onDegrade(false)
	}
}
