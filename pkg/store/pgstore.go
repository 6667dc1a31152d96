package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/beaconhq/pulse/pkg/database"
	"github.com/beaconhq/pulse/pkg/span"
)

// PGStore is the PostgreSQL-backed reference Store, writing through the
// pgxpool-backed pkg/database.Client against the schema in
// pkg/database/migrations.
type PGStore struct {
	client *database.Client
}

// NewPGStore wraps an already-connected database.Client.
func NewPGStore(client *database.Client) *PGStore {
	return &PGStore{client: client}
}

func (s *PGStore) WriteSpans(ctx context.Context, batch []*span.Span) (string, error) {
	tx, err := s.client.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: begin tx: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	traceIDs := make(map[span.ID]struct{})
	for _, sp := range batch {
		traceIDs[sp.TraceID] = struct{}{}
	}
	for tid := range traceIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO traces (trace_id, root_kind, started_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (trace_id) DO NOTHING`,
			string(tid), "unknown",
		); err != nil {
			return "", fmt.Errorf("%w: insert trace: %v", ErrUnavailable, err)
		}
	}

	for _, sp := range batch {
		if err := writeOneSpan(ctx, tx, sp); err != nil {
			return "", fmt.Errorf("%w: write span %s: %v", ErrUnavailable, sp.SpanID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return uuid.New().String(), nil
}

func writeOneSpan(ctx context.Context, tx pgx.Tx, sp *span.Span) error {
	attrs, err := json.Marshal(sp.Attributes)
	if err != nil {
		return err
	}

	var model, inputPreview, outputPreview string
	var promptTokens, completionTokens, totalTokens *int64
	var costMicros *int64
	if sp.LLM != nil {
		model = sp.LLM.Model
		inputPreview = sp.LLM.InputPreview
		outputPreview = sp.LLM.OutputPreview
		pt, ct, tt := sp.LLM.InputTokens, sp.LLM.OutputTokens, sp.LLM.TotalTokens()
		promptTokens, completionTokens, totalTokens = &pt, &ct, &tt
	}
	if sp.Cost != nil {
		micros := sp.Cost.Total.Shift(6).IntPart()
		costMicros = &micros
	}

	var durationMs *int64
	if sp.DurationMicros != nil {
		ms := *sp.DurationMicros / 1000
		durationMs = &ms
	}

	var parentID *string
	if sp.ParentSpanID != nil {
		pid := string(*sp.ParentSpanID)
		parentID = &pid
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO spans (
			span_id, trace_id, parent_span_id, kind, name, status, started_at, ended_at,
			duration_ms, model, prompt_tokens, completion_tokens, total_tokens, cost_micros,
			input_preview, output_preview, attributes, collector_version, host_tag
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (span_id) DO UPDATE SET
			status = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at,
			duration_ms = EXCLUDED.duration_ms,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			total_tokens = EXCLUDED.total_tokens,
			cost_micros = EXCLUDED.cost_micros,
			output_preview = EXCLUDED.output_preview,
			attributes = EXCLUDED.attributes`,
		string(sp.SpanID), string(sp.TraceID), parentID, string(sp.Kind), sp.Name, string(sp.Status),
		sp.StartTime, sp.EndTime, durationMs, model, promptTokens, completionTokens, totalTokens, costMicros,
		inputPreview, outputPreview, attrs, sp.CollectorVer, sp.HostTag,
	)
	return err
}

func (s *PGStore) WriteAlertEvent(ctx context.Context, evt span.AlertEvent) (string, error) {
	_, err := s.client.Pool.Exec(ctx, `
		INSERT INTO alert_events (
			event_id, rule_id, status, triggered_at, acknowledged_at, resolved_at,
			observed_value, threshold, dimension_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (event_id) DO UPDATE SET
			status = EXCLUDED.status,
			acknowledged_at = EXCLUDED.acknowledged_at,
			resolved_at = EXCLUDED.resolved_at`,
		string(evt.EventID), string(evt.RuleID), string(evt.Status), evt.TriggeredAt,
		evt.AcknowledgedAt, evt.ResolvedAt, evt.ObservedValue, evt.Threshold, evt.DimensionKey,
	)
	if err != nil {
		return "", fmt.Errorf("%w: write alert event: %v", ErrUnavailable, err)
	}
	return uuid.New().String(), nil
}

func (s *PGStore) Health(ctx context.Context) error {
	_, err := database.Health(ctx, s.client.Pool)
	return err
}
