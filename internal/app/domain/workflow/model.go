// Package workflow defines the multi-step workflow domain types.
package workflow

import "time"

// Type names a registered workflow.
type Type string

const (
	TypeTextGeneration    Type = "text_generation"
	TypeCodeAnalysis      Type = "code_analysis"
	TypeFinancialAnalysis Type = "financial_analysis"
)

// Status tracks a workflow run through its lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run records one invocation of a workflow, including the step results.
type Run struct {
	ID         string         `json:"id"`
	Type       Type           `json:"workflow_type"`
	Status     Status         `json:"status"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}
