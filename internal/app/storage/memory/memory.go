// Package memory provides a thread-safe in-memory implementation of the
// storage interfaces. It is the default backend when no database is
// configured and is also used throughout the tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/domain/workflow"
)

// Store keeps all records in maps guarded by a single RWMutex. Reads return
// clones so callers can never mutate stored state.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	executions map[string]execution.Job
	workflows  map[string]workflow.Run
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextID:     1,
		executions: make(map[string]execution.Job),
		workflows:  make(map[string]workflow.Run),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// ExecutionStore implementation ----------------------------------------------

func (s *Store) CreateExecution(_ context.Context, job execution.Job) (execution.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = s.nextIDLocked()
	} else if _, exists := s.executions[job.ID]; exists {
		return execution.Job{}, fmt.Errorf("execution %s already exists", job.ID)
	}

	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}

	s.executions[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

func (s *Store) UpdateExecution(_ context.Context, job execution.Job) (execution.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.executions[job.ID]
	if !ok {
		return execution.Job{}, fmt.Errorf("execution %s not found", job.ID)
	}

	job.StartedAt = original.StartedAt
	s.executions[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

func (s *Store) GetExecution(_ context.Context, id string) (execution.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.executions[id]
	if !ok {
		return execution.Job{}, fmt.Errorf("execution %s not found", id)
	}
	return cloneJob(job), nil
}

func (s *Store) ListExecutions(_ context.Context) ([]execution.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]execution.Job, 0, len(s.executions))
	for _, job := range s.executions {
		result = append(result, cloneJob(job))
	}
	return result, nil
}

func (s *Store) DeleteExecutionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, job := range s.executions {
		if job.StartedAt.Before(cutoff) {
			delete(s.executions, id)
			removed++
		}
	}
	return removed, nil
}

// WorkflowStore implementation ----------------------------------------------

func (s *Store) CreateWorkflowRun(_ context.Context, run workflow.Run) (workflow.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = s.nextIDLocked()
	} else if _, exists := s.workflows[run.ID]; exists {
		return workflow.Run{}, fmt.Errorf("workflow run %s already exists", run.ID)
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	s.workflows[run.ID] = cloneRun(run)
	return cloneRun(run), nil
}

func (s *Store) UpdateWorkflowRun(_ context.Context, run workflow.Run) (workflow.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.workflows[run.ID]
	if !ok {
		return workflow.Run{}, fmt.Errorf("workflow run %s not found", run.ID)
	}

	run.StartedAt = original.StartedAt
	s.workflows[run.ID] = cloneRun(run)
	return cloneRun(run), nil
}

func (s *Store) GetWorkflowRun(_ context.Context, id string) (workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.workflows[id]
	if !ok {
		return workflow.Run{}, fmt.Errorf("workflow run %s not found", id)
	}
	return cloneRun(run), nil
}

func (s *Store) ListWorkflowRuns(_ context.Context, workflowType workflow.Type) ([]workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]workflow.Run, 0)
	for _, run := range s.workflows {
		if workflowType == "" || run.Type == workflowType {
			result = append(result, cloneRun(run))
		}
	}
	return result, nil
}

func (s *Store) DeleteWorkflowRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, run := range s.workflows {
		if run.StartedAt.Before(cutoff) {
			delete(s.workflows, id)
			removed++
		}
	}
	return removed, nil
}

// Helpers ---------------------------------------------------------------------

func cloneJob(job execution.Job) execution.Job {
	job.Logs = append([]string(nil), job.Logs...)
	job.Output = copyMap(job.Output)
	return job
}

func cloneRun(run workflow.Run) workflow.Run {
	run.Inputs = copyMap(run.Inputs)
	run.Result = copyMap(run.Result)
	return run
}

func copyMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
