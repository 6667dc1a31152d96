package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/beaconhq/pulse/pkg/span"
)

// MemStore is an in-memory Store used by tests and by the controller when
// no Postgres DSN is configured (single-process / local-first operation).
type MemStore struct {
	mu     sync.RWMutex
	spans  map[span.ID]*span.Span
	events map[span.ID]span.AlertEvent
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		spans:  make(map[span.ID]*span.Span),
		events: make(map[span.ID]span.AlertEvent),
	}
}

func (m *MemStore) WriteSpans(_ context.Context, batch []*span.Span) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range batch {
		cp := *s
		m.spans[s.SpanID] = &cp
	}
	return uuid.New().String(), nil
}

func (m *MemStore) WriteAlertEvent(_ context.Context, evt span.AlertEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[evt.EventID] = evt
	return uuid.New().String(), nil
}

func (m *MemStore) Health(context.Context) error {
	return nil
}

// Get returns the currently stored version of a span, for assertions in tests.
func (m *MemStore) Get(id span.ID) (*span.Span, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.spans[id]
	return s, ok
}

// Len returns the number of distinct spans currently stored.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.spans)
}

// Event returns the currently stored version of an alert event.
func (m *MemStore) Event(id span.ID) (span.AlertEvent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	return e, ok
}
