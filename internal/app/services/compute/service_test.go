package compute

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/storage/memory"
)

func newTestService(cfg Config) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return New(cfg, memory.New(), nil)
}

func TestExecuteReturnsScriptValue(t *testing.T) {
	svc := newTestService(Config{Enabled: true})

	job, err := svc.Execute(context.Background(), `({answer: 6 * 7})`, "javascript", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != execution.StatusCompleted {
		t.Fatalf("status = %q (error %q), want completed", job.Status, job.Error)
	}
	if got := job.Output["answer"]; got != int64(42) && got != float64(42) {
		t.Fatalf("output answer = %v (%T), want 42", got, got)
	}
}

func TestExecuteCallsMainEntryPoint(t *testing.T) {
	svc := newTestService(Config{Enabled: true})

	script := `
function main() {
    console.log("starting");
    return {total: inputs.a + inputs.b};
}`
	job, err := svc.Execute(context.Background(), script, "js", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != execution.StatusCompleted {
		t.Fatalf("status = %q (error %q), want completed", job.Status, job.Error)
	}
	if got := job.Output["total"]; got != int64(5) && got != float64(5) {
		t.Fatalf("output total = %v (%T), want 5", got, got)
	}
	if len(job.Logs) != 1 || job.Logs[0] != "starting" {
		t.Fatalf("logs = %v, want [starting]", job.Logs)
	}
}

func TestExecuteScalarResultIsWrapped(t *testing.T) {
	svc := newTestService(Config{Enabled: true})

	job, err := svc.Execute(context.Background(), `1 + 1`, "javascript", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := job.Output["result"]; got != int64(2) && got != float64(2) {
		t.Fatalf("output result = %v (%T), want 2", got, got)
	}
}

func TestExecuteDisabled(t *testing.T) {
	svc := newTestService(Config{Enabled: false})

	job, err := svc.Execute(context.Background(), `1`, "javascript", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != execution.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "disabled") {
		t.Fatalf("error = %q, want disabled message", job.Error)
	}
}

func TestExecuteRejectsUnsupportedLanguage(t *testing.T) {
	svc := newTestService(Config{Enabled: true})

	job, err := svc.Execute(context.Background(), `print("hi")`, "python", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != execution.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "unsupported language") {
		t.Fatalf("error = %q, want unsupported language message", job.Error)
	}
}

func TestExecuteEnforcesScriptSize(t *testing.T) {
	svc := newTestService(Config{Enabled: true, MaxScriptSize: 10})

	job, err := svc.Execute(context.Background(), `var x = "a long script over the limit";`, "javascript", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != execution.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "maximum size") {
		t.Fatalf("error = %q, want size message", job.Error)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	svc := newTestService(Config{Enabled: true, Timeout: 100 * time.Millisecond})

	job, err := svc.Execute(context.Background(), `while (true) {}`, "javascript", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != execution.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "timed out") {
		t.Fatalf("error = %q, want timeout message", job.Error)
	}
}

func TestExecuteReportsScriptErrors(t *testing.T) {
	svc := newTestService(Config{Enabled: true})

	job, err := svc.Execute(context.Background(), `throw new Error("boom")`, "javascript", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.Status != execution.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "boom") {
		t.Fatalf("error = %q, want boom", job.Error)
	}
}

func TestGetJob(t *testing.T) {
	svc := newTestService(Config{Enabled: true})

	created, err := svc.Execute(context.Background(), `({ok: true})`, "javascript", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := svc.GetJob(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != execution.StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
}
