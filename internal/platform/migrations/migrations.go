// Package migrations applies the database schema on startup. Statements are
// idempotent so Apply can run on every boot.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		language TEXT NOT NULL,
		script_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		output JSONB,
		logs JSONB,
		error TEXT NOT NULL DEFAULT '',
		duration TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS workflow_runs (
		id TEXT PRIMARY KEY,
		workflow_type TEXT NOT NULL,
		status TEXT NOT NULL,
		inputs JSONB,
		result JSONB,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions (started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_runs_started_at ON workflow_runs (started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_runs_type ON workflow_runs (workflow_type)`,
}

// Apply runs every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
