// Package aggregate implements C5: rolling per-rollup-key windowed
// counters (count, error count, token sums, cost sum, latency
// percentiles), with lazy bucket creation and age-based eviction.
package aggregate

import (
	"sync"
	"time"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/span"
)

// keyRing is one rollup key's ring of retained windows.
type keyRing struct {
	mu      sync.Mutex
	buckets map[time.Time]*bucket // keyed by window start
}

// Aggregator is the map from rollup-key to a ring of windowed buckets.
type Aggregator struct {
	windowSecs    int
	windowsRet    int
	reservoirSize int

	mu    sync.RWMutex
	rings map[span.RollupKey]*keyRing
}

// New constructs an Aggregator from a snapshot of AggregatorConfig.
func New(cfg config.AggregatorConfig) *Aggregator {
	return &Aggregator{
		windowSecs:    cfg.WindowSeconds,
		windowsRet:    cfg.WindowsRetained,
		reservoirSize: cfg.ReservoirSize,
		rings:         make(map[span.RollupKey]*keyRing),
	}
}

// windowStart floors t to the aggregator's window granularity.
func (a *Aggregator) windowStart(t time.Time) time.Time {
	sec := int64(a.windowSecs)
	return time.Unix((t.Unix()/sec)*sec, 0).UTC()
}

func rollupKeyFor(s *span.Span) span.RollupKey {
	model := ""
	if s.LLM != nil {
		model = s.LLM.Model
	}
	return span.RollupKey{Service: s.Service, Model: model, Operation: s.Name, Kind: s.Kind}
}

// Observe folds s into the bucket for its rollup key and window, creating
// both lazily on first observation.
func (a *Aggregator) Observe(s *span.Span) {
	key := rollupKeyFor(s)
	ws := a.windowStart(s.StartTime)

	ring := a.ringFor(key)

	ring.mu.Lock()
	b, ok := ring.buckets[ws]
	if !ok {
		b = newBucket(ws, a.windowSecs, a.reservoirSize)
		ring.buckets[ws] = b
	}
	ring.mu.Unlock()

	b.observe(s)
}

func (a *Aggregator) ringFor(key span.RollupKey) *keyRing {
	a.mu.RLock()
	ring, ok := a.rings[key]
	a.mu.RUnlock()
	if ok {
		return ring
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ring, ok := a.rings[key]; ok {
		return ring
	}
	ring = &keyRing{buckets: make(map[time.Time]*bucket)}
	a.rings[key] = ring
	return ring
}

// Evict drops buckets older than windows_retained * window_seconds
// relative to now. Called on each aggregator tick.
func (a *Aggregator) Evict(now time.Time) {
	cutoff := now.Add(-time.Duration(a.windowsRet*a.windowSecs) * time.Second)

	a.mu.RLock()
	rings := make([]*keyRing, 0, len(a.rings))
	for _, r := range a.rings {
		rings = append(rings, r)
	}
	a.mu.RUnlock()

	for _, ring := range rings {
		ring.mu.Lock()
		for ws := range ring.buckets {
			if ws.Before(cutoff) {
				delete(ring.buckets, ws)
			}
		}
		ring.mu.Unlock()
	}
}

// Snapshot returns a consistent, immutable view of every retained bucket
// for rule evaluation or dashboards. It clones bucket heads under each
// ring's short lock rather than one global lock, so concurrent Observe
// calls on unrelated keys are never blocked by a snapshot in progress.
func (a *Aggregator) Snapshot() []span.AggregateBucket {
	a.mu.RLock()
	keys := make([]span.RollupKey, 0, len(a.rings))
	rings := make([]*keyRing, 0, len(a.rings))
	for k, r := range a.rings {
		keys = append(keys, k)
		rings = append(rings, r)
	}
	a.mu.RUnlock()

	var out []span.AggregateBucket
	for i, ring := range rings {
		ring.mu.Lock()
		for _, b := range ring.buckets {
			out = append(out, b.snapshot(keys[i]))
		}
		ring.mu.Unlock()
	}
	return out
}

// SnapshotWindow returns the single bucket matching key and windowStart,
// if one exists — used by the alert engine to compare a window against
// the one immediately preceding it (rate-change condition).
func (a *Aggregator) SnapshotWindow(key span.RollupKey, windowStart time.Time) (span.AggregateBucket, bool) {
	a.mu.RLock()
	ring, ok := a.rings[key]
	a.mu.RUnlock()
	if !ok {
		return span.AggregateBucket{}, false
	}

	ring.mu.Lock()
	b, ok := ring.buckets[windowStart]
	ring.mu.Unlock()
	if !ok {
		return span.AggregateBucket{}, false
	}
	return b.snapshot(key), true
}

// WindowStart exposes the window-flooring function for callers (e.g. the
// alert engine) that need to compute which window a given instant falls in.
func (a *Aggregator) WindowStart(t time.Time) time.Time {
	return a.windowStart(t)
}

// WindowSeconds returns the configured window length.
func (a *Aggregator) WindowSeconds() int {
	return a.windowSecs
}
