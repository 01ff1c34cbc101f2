// Package storage defines the persistence interfaces for the application.
package storage

import (
	"context"
	"time"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/domain/workflow"
)

// ExecutionStore persists code execution jobs.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, job execution.Job) (execution.Job, error)
	UpdateExecution(ctx context.Context, job execution.Job) (execution.Job, error)
	GetExecution(ctx context.Context, id string) (execution.Job, error)
	ListExecutions(ctx context.Context) ([]execution.Job, error)
	DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WorkflowStore persists workflow runs.
type WorkflowStore interface {
	CreateWorkflowRun(ctx context.Context, run workflow.Run) (workflow.Run, error)
	UpdateWorkflowRun(ctx context.Context, run workflow.Run) (workflow.Run, error)
	GetWorkflowRun(ctx context.Context, id string) (workflow.Run, error)
	ListWorkflowRuns(ctx context.Context, workflowType workflow.Type) ([]workflow.Run, error)
	DeleteWorkflowRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
