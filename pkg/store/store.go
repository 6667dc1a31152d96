// Package store defines the durable-sink interface the Persister writes
// through (this design's "Store interface (consumed)") and two
// implementations: an in-memory store for tests and controller wiring, and
// a PostgreSQL-backed reference adapter over pkg/database.
package store

import (
	"context"
	"errors"

	"github.com/beaconhq/pulse/pkg/span"
)

// ErrUnavailable is returned by a Store implementation for a failure the
// caller should classify as pulseerr.StoreTransient and retry.
var ErrUnavailable = errors.New("store temporarily unavailable")

// Store is the append/upsert surface the core treats the durable sink as.
// The core never assumes a particular storage engine beyond this surface
// plus the schema capabilities named in the design (time-partitioned
// storage keyed on span start-instant; secondary indices on trace/service/
// model/status).
type Store interface {
	// WriteSpans commits a batch in one operation, returning a commit
	// identifier. A span with a previously-seen SpanID and a terminal
	// status replaces the prior row (upsert); in-flight spans are
	// upserted too.
	WriteSpans(ctx context.Context, batch []*span.Span) (commitID string, err error)

	// WriteAlertEvent appends or updates one alert event. Written through
	// a separate queue from span writes so head-of-line blocking between
	// the two can't occur.
	WriteAlertEvent(ctx context.Context, evt span.AlertEvent) (commitID string, err error)

	// Health reports whether the store is currently reachable.
	Health(ctx context.Context) error
}
