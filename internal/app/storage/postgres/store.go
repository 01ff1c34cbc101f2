// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/domain/workflow"
	"github.com/advanced-ai/backend/internal/app/storage"
)

// Store implements the storage interfaces over a *sql.DB. Structured payloads
// (output maps, logs) are stored as JSON columns.
type Store struct {
	db *sql.DB
}

var _ storage.ExecutionStore = (*Store)(nil)
var _ storage.WorkflowStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- ExecutionStore ----------------------------------------------------------

func (s *Store) CreateExecution(ctx context.Context, job execution.Job) (execution.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}

	outputJSON, logsJSON, err := marshalJobPayload(job)
	if err != nil {
		return execution.Job{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (id, language, script_hash, status, output, logs, error, duration, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, job.ID, job.Language, job.ScriptHash, job.Status, outputJSON, logsJSON, job.Error, job.Duration, job.StartedAt, nullableTime(job.FinishedAt))
	if err != nil {
		return execution.Job{}, err
	}
	return job, nil
}

func (s *Store) UpdateExecution(ctx context.Context, job execution.Job) (execution.Job, error) {
	outputJSON, logsJSON, err := marshalJobPayload(job)
	if err != nil {
		return execution.Job{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2, output = $3, logs = $4, error = $5, duration = $6, finished_at = $7
		WHERE id = $1
	`, job.ID, job.Status, outputJSON, logsJSON, job.Error, job.Duration, nullableTime(job.FinishedAt))
	if err != nil {
		return execution.Job{}, err
	}
	if err := requireRow(result, "execution", job.ID); err != nil {
		return execution.Job{}, err
	}
	return s.GetExecution(ctx, job.ID)
}

func (s *Store) GetExecution(ctx context.Context, id string) (execution.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, language, script_hash, status, output, logs, error, duration, started_at, finished_at
		FROM executions WHERE id = $1
	`, id)
	return scanExecution(row)
}

func (s *Store) ListExecutions(ctx context.Context) ([]execution.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, language, script_hash, status, output, logs, error, duration, started_at, finished_at
		FROM executions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []execution.Job
	for rows.Next() {
		job, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- WorkflowStore -----------------------------------------------------------

func (s *Store) CreateWorkflowRun(ctx context.Context, run workflow.Run) (workflow.Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	inputsJSON, resultJSON, err := marshalRunPayload(run)
	if err != nil {
		return workflow.Run{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (id, workflow_type, status, inputs, result, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Type, run.Status, inputsJSON, resultJSON, run.Error, run.StartedAt, nullableTime(run.FinishedAt))
	if err != nil {
		return workflow.Run{}, err
	}
	return run, nil
}

func (s *Store) UpdateWorkflowRun(ctx context.Context, run workflow.Run) (workflow.Run, error) {
	inputsJSON, resultJSON, err := marshalRunPayload(run)
	if err != nil {
		return workflow.Run{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE workflow_runs
		SET status = $2, inputs = $3, result = $4, error = $5, finished_at = $6
		WHERE id = $1
	`, run.ID, run.Status, inputsJSON, resultJSON, run.Error, nullableTime(run.FinishedAt))
	if err != nil {
		return workflow.Run{}, err
	}
	if err := requireRow(result, "workflow run", run.ID); err != nil {
		return workflow.Run{}, err
	}
	return s.GetWorkflowRun(ctx, run.ID)
}

func (s *Store) GetWorkflowRun(ctx context.Context, id string) (workflow.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_type, status, inputs, result, error, started_at, finished_at
		FROM workflow_runs WHERE id = $1
	`, id)
	return scanWorkflowRun(row)
}

func (s *Store) ListWorkflowRuns(ctx context.Context, workflowType workflow.Type) ([]workflow.Run, error) {
	query := `
		SELECT id, workflow_type, status, inputs, result, error, started_at, finished_at
		FROM workflow_runs
	`
	var rows *sql.Rows
	var err error
	if workflowType == "" {
		rows, err = s.db.QueryContext(ctx, query+` ORDER BY started_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, query+` WHERE workflow_type = $1 ORDER BY started_at DESC`, workflowType)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []workflow.Run
	for rows.Next() {
		run, err := scanWorkflowRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) DeleteWorkflowRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workflow_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- Helpers -----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (execution.Job, error) {
	var job execution.Job
	var outputJSON, logsJSON []byte
	var finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.Language, &job.ScriptHash, &job.Status,
		&outputJSON, &logsJSON, &job.Error, &job.Duration, &job.StartedAt, &finishedAt)
	if err != nil {
		return execution.Job{}, err
	}

	if len(outputJSON) > 0 {
		if err := json.Unmarshal(outputJSON, &job.Output); err != nil {
			return execution.Job{}, fmt.Errorf("decode execution output: %w", err)
		}
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &job.Logs); err != nil {
			return execution.Job{}, fmt.Errorf("decode execution logs: %w", err)
		}
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}
	return job, nil
}

func scanWorkflowRun(row rowScanner) (workflow.Run, error) {
	var run workflow.Run
	var inputsJSON, resultJSON []byte
	var finishedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Type, &run.Status,
		&inputsJSON, &resultJSON, &run.Error, &run.StartedAt, &finishedAt)
	if err != nil {
		return workflow.Run{}, err
	}

	if len(inputsJSON) > 0 {
		if err := json.Unmarshal(inputsJSON, &run.Inputs); err != nil {
			return workflow.Run{}, fmt.Errorf("decode workflow inputs: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &run.Result); err != nil {
			return workflow.Run{}, fmt.Errorf("decode workflow result: %w", err)
		}
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return run, nil
}

func marshalJobPayload(job execution.Job) ([]byte, []byte, error) {
	outputJSON, err := json.Marshal(job.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("encode execution output: %w", err)
	}
	logsJSON, err := json.Marshal(job.Logs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode execution logs: %w", err)
	}
	return outputJSON, logsJSON, nil
}

func marshalRunPayload(run workflow.Run) ([]byte, []byte, error) {
	inputsJSON, err := json.Marshal(run.Inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode workflow inputs: %w", err)
	}
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return nil, nil, fmt.Errorf("encode workflow result: %w", err)
	}
	return inputsJSON, resultJSON, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func requireRow(result sql.Result, kind, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	return nil
}
