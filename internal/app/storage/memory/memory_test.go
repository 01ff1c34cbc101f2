package memory

import (
	"context"
	"testing"
	"time"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/domain/workflow"
)

func TestExecutionLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateExecution(ctx, execution.Job{
		Language:   "javascript",
		ScriptHash: "abc",
		Status:     execution.StatusRunning,
	})
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}
	if created.StartedAt.IsZero() {
		t.Fatal("expected started_at to be set")
	}

	created.Status = execution.StatusCompleted
	created.Output = map[string]any{"result": 7}
	updated, err := store.UpdateExecution(ctx, created)
	if err != nil {
		t.Fatalf("update execution: %v", err)
	}
	if updated.Status != execution.StatusCompleted {
		t.Fatalf("status = %q, want completed", updated.Status)
	}

	got, err := store.GetExecution(ctx, created.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if got.Output["result"] != 7 {
		t.Fatalf("output = %v, want result 7", got.Output)
	}

	jobs, err := store.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
}

func TestGetExecutionReturnsClone(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateExecution(ctx, execution.Job{
		Status: execution.StatusRunning,
		Output: map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}

	first, _ := store.GetExecution(ctx, created.ID)
	first.Output["k"] = "mutated"

	second, _ := store.GetExecution(ctx, created.ID)
	if second.Output["k"] != "v" {
		t.Fatalf("stored output mutated through clone: %v", second.Output)
	}
}

func TestUpdateExecutionNotFound(t *testing.T) {
	store := New()
	if _, err := store.UpdateExecution(context.Background(), execution.Job{ID: "nope"}); err == nil {
		t.Fatal("expected error for unknown execution")
	}
}

func TestDeleteExecutionsBefore(t *testing.T) {
	store := New()
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if _, err := store.CreateExecution(ctx, execution.Job{StartedAt: old}); err != nil {
		t.Fatalf("create old execution: %v", err)
	}
	if _, err := store.CreateExecution(ctx, execution.Job{}); err != nil {
		t.Fatalf("create fresh execution: %v", err)
	}

	removed, err := store.DeleteExecutionsBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete executions: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	jobs, _ := store.ListExecutions(ctx)
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1 remaining", len(jobs))
	}
}

func TestWorkflowRunLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateWorkflowRun(ctx, workflow.Run{
		Type:   workflow.TypeTextGeneration,
		Status: workflow.StatusRunning,
		Inputs: map[string]any{"prompt": "hi"},
	})
	if err != nil {
		t.Fatalf("create workflow run: %v", err)
	}

	created.Status = workflow.StatusCompleted
	created.Result = map[string]any{"generated_text": "hello"}
	if _, err := store.UpdateWorkflowRun(ctx, created); err != nil {
		t.Fatalf("update workflow run: %v", err)
	}

	got, err := store.GetWorkflowRun(ctx, created.ID)
	if err != nil {
		t.Fatalf("get workflow run: %v", err)
	}
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.Result["generated_text"] != "hello" {
		t.Fatalf("result = %v", got.Result)
	}
}

func TestListWorkflowRunsFiltersByType(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, typ := range []workflow.Type{workflow.TypeTextGeneration, workflow.TypeCodeAnalysis, workflow.TypeCodeAnalysis} {
		if _, err := store.CreateWorkflowRun(ctx, workflow.Run{Type: typ, Status: workflow.StatusCompleted}); err != nil {
			t.Fatalf("create workflow run: %v", err)
		}
	}

	runs, err := store.ListWorkflowRuns(ctx, workflow.TypeCodeAnalysis)
	if err != nil {
		t.Fatalf("list workflow runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}

	all, err := store.ListWorkflowRuns(ctx, "")
	if err != nil {
		t.Fatalf("list all workflow runs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
}
