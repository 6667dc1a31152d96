package controller

import (
	"sync"

	"github.com/beaconhq/pulse/pkg/span"
)

// traceIndexCapacity bounds the parent-trace lookup index so a
// long-running process doesn't grow it without limit. Eviction is FIFO by
// insertion order, not recency — good enough for the window that matters
// (a child span almost always arrives within seconds of its parent).
const traceIndexCapacity = 200_000

// traceIndex is a bounded span-id -> trace-id map the controller
// maintains so the validator's ValidateParentTrace check (the design's
// OrphanParent invariant) can be applied without the validator itself
// needing to see the whole in-flight span population.
type traceIndex struct {
	mu    sync.Mutex
	byID  map[span.ID]span.ID
	order []span.ID
}

func newTraceIndex() *traceIndex {
	return &traceIndex{byID: make(map[span.ID]span.ID, traceIndexCapacity)}
}

func (t *traceIndex) record(spanID, traceID span.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[spanID]; exists {
		return
	}
	t.byID[spanID] = traceID
	t.order = append(t.order, spanID)

	if len(t.order) > traceIndexCapacity {
		evict := t.order[0]
		t.order = t.order[1:]
		delete(t.byID, evict)
	}
}

func (t *traceIndex) lookup(spanID span.ID) (span.ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	traceID, ok := t.byID[spanID]
	return traceID, ok
}

func (t *traceIndex) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
