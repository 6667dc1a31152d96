package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/store"
)

func TestMemStoreWriteSpansUpserts(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()

	id := span.NewID()
	running := &span.Span{SpanID: id, TraceID: span.NewID(), Name: "llm_call_2"}
	_, err := m.WriteSpans(ctx, []*span.Span{running})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	end := time.Now()
	terminal := &span.Span{SpanID: id, TraceID: running.TraceID, Name: "llm_call_2", EndTime: &end}
	_, err = m.WriteSpans(ctx, []*span.Span{terminal})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Len(), "terminal update replaces the prior row rather than adding one")
	got, ok := m.Get(id)
	require.True(t, ok)
	assert.NotNil(t, got.EndTime)
}

func TestMemStoreWriteAlertEvent(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()

	evt := span.AlertEvent{EventID: span.NewID(), RuleID: span.NewID(), Status: "triggered"}
	_, err := m.WriteAlertEvent(ctx, evt)
	require.NoError(t, err)

	got, ok := m.Event(evt.EventID)
	require.True(t, ok)
	assert.EqualValues(t, "triggered", got.Status)
}

func TestMemStoreHealth(t *testing.T) {
	m := store.NewMemStore()
	assert.NoError(t, m.Health(context.Background()))
}
