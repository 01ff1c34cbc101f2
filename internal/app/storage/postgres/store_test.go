package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/domain/workflow"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestCreateExecutionAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO executions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	job, err := store.CreateExecution(context.Background(), execution.Job{
		Language:   "javascript",
		ScriptHash: "abc123",
		Status:     execution.StatusRunning,
	})
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected generated execution ID")
	}
	if job.StartedAt.IsZero() {
		t.Fatal("expected started_at to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetExecutionDecodesPayload(t *testing.T) {
	store, mock := newMockStore(t)

	started := time.Now().UTC().Truncate(time.Second)
	finished := started.Add(50 * time.Millisecond)
	rows := sqlmock.NewRows([]string{
		"id", "language", "script_hash", "status", "output", "logs",
		"error", "duration", "started_at", "finished_at",
	}).AddRow("job-1", "javascript", "abc123", "completed",
		[]byte(`{"result":42}`), []byte(`["hello"]`), "", "50ms", started, finished)

	mock.ExpectQuery("SELECT (.+) FROM executions WHERE id").
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := store.GetExecution(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if job.Status != execution.StatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if got := job.Output["result"]; got != float64(42) {
		t.Fatalf("output result = %v, want 42", got)
	}
	if len(job.Logs) != 1 || job.Logs[0] != "hello" {
		t.Fatalf("logs = %v, want [hello]", job.Logs)
	}
	if !job.FinishedAt.Equal(finished) {
		t.Fatalf("finished_at = %v, want %v", job.FinishedAt, finished)
	}
}

func TestUpdateExecutionMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE executions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateExecution(context.Background(), execution.Job{
		ID:     "missing",
		Status: execution.StatusCompleted,
	})
	if err == nil {
		t.Fatal("expected error for missing execution")
	}
}

func TestDeleteExecutionsBefore(t *testing.T) {
	store, mock := newMockStore(t)

	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectExec("DELETE FROM executions WHERE started_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.DeleteExecutionsBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("delete executions: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
}

func TestCreateWorkflowRunAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO workflow_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	run, err := store.CreateWorkflowRun(context.Background(), workflow.Run{
		Type:   workflow.TypeTextGeneration,
		Status: workflow.StatusRunning,
		Inputs: map[string]any{"prompt": "hello"},
	})
	if err != nil {
		t.Fatalf("create workflow run: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated workflow run ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWorkflowRunsFiltersByType(t *testing.T) {
	store, mock := newMockStore(t)

	started := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "workflow_type", "status", "inputs", "result",
		"error", "started_at", "finished_at",
	}).AddRow("run-1", "code_analysis", "completed",
		[]byte(`{"code":"function main() {}"}`), []byte(`{"explanation":"ok"}`), "", started, started)

	mock.ExpectQuery("SELECT (.+) FROM workflow_runs\\s+WHERE workflow_type").
		WithArgs(workflow.TypeCodeAnalysis).
		WillReturnRows(rows)

	runs, err := store.ListWorkflowRuns(context.Background(), workflow.TypeCodeAnalysis)
	if err != nil {
		t.Fatalf("list workflow runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].Result["explanation"] != "ok" {
		t.Fatalf("result = %v, want explanation ok", runs[0].Result)
	}
}
