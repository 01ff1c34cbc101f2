// Package execution defines the code execution domain types.
package execution

import "time"

// Status tracks a job through its lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job records a single sandboxed code execution. The script itself is not
// persisted; ScriptHash identifies it.
type Job struct {
	ID         string         `json:"id"`
	Language   string         `json:"language"`
	ScriptHash string         `json:"script_hash"`
	Status     Status         `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Logs       []string       `json:"logs,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   string         `json:"duration,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}
