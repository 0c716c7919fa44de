package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id         TEXT PRIMARY KEY,
	creator    TEXT NOT NULL,
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL,
	snapshot   JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL REFERENCES workflows(id),
	is_complete BOOLEAN NOT NULL,
	successful  BOOLEAN NOT NULL,
	snapshot    JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS fee_ledger (
	id         BIGSERIAL PRIMARY KEY,
	amount     BIGINT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS executions_workflow_id_idx ON executions(workflow_id);
CREATE INDEX IF NOT EXISTS executions_is_complete_idx ON executions(is_complete) WHERE is_complete = false;
`

// Migrate applies the repository's schema. It is idempotent and safe to run
// on every startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
