package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateGINIndexes creates GIN indexes for JSONB attribute search on spans.
// These aren't expressed in the ordered migration files because they're
// safe to (re)issue with IF NOT EXISTS outside of migration sequencing.
func CreateGINIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_spans_attributes_gin ON spans USING gin(attributes)`)
	if err != nil {
		return fmt.Errorf("failed to create spans attributes GIN index: %w", err)
	}

	_, err = pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_spans_input_preview_trgm ON spans USING gin(input_preview gin_trgm_ops)`)
	if err != nil {
		return fmt.Errorf("failed to create spans input_preview trigram index: %w", err)
	}

	return nil
}
