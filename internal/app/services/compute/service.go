// Package compute runs user scripts inside an embedded JavaScript sandbox.
// Scripts never touch the host process; the runtime exposes only console.log
// and the caller-provided inputs.
package compute

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/metrics"
	"github.com/advanced-ai/backend/internal/app/storage"
	"github.com/advanced-ai/backend/pkg/logger"
)

// Config tunes the executor.
type Config struct {
	Enabled       bool
	MaxScriptSize int
	Timeout       time.Duration
}

// Service executes scripts and records the resulting jobs.
type Service struct {
	cfg   Config
	store storage.ExecutionStore
	log   *logger.Logger
}

// New creates the compute service.
func New(cfg Config, store storage.ExecutionStore, log *logger.Logger) *Service {
	if cfg.MaxScriptSize <= 0 {
		cfg.MaxScriptSize = 64 * 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("compute")
	}
	return &Service{cfg: cfg, store: store, log: log}
}

func (s *Service) Name() string { return "compute" }

func (s *Service) Start(context.Context) error { return nil }

func (s *Service) Stop(context.Context) error { return nil }

// Execute runs the script and returns the finished job. Sandbox failures are
// reported through the job status, not the error return; the error return is
// reserved for persistence problems.
func (s *Service) Execute(ctx context.Context, script, language string, inputs map[string]any) (execution.Job, error) {
	if language == "" {
		language = "javascript"
	}

	sum := sha256.Sum256([]byte(script))
	job := execution.Job{
		Language:   language,
		ScriptHash: hex.EncodeToString(sum[:]),
		Status:     execution.StatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	job, err := s.store.CreateExecution(ctx, job)
	if err != nil {
		return execution.Job{}, fmt.Errorf("create execution: %w", err)
	}

	switch {
	case !s.cfg.Enabled:
		job = fail(job, "code execution is disabled")
	case !isJavaScript(language):
		job = fail(job, fmt.Sprintf("unsupported language %q, only javascript is supported", language))
	case len(script) > s.cfg.MaxScriptSize:
		job = fail(job, fmt.Sprintf("script exceeds maximum size of %d bytes", s.cfg.MaxScriptSize))
	case strings.TrimSpace(script) == "":
		job = fail(job, "script is empty")
	default:
		job = s.run(job, script, inputs)
	}

	metrics.RecordCodeExecution(string(job.Status), job.FinishedAt.Sub(job.StartedAt))

	stored, err := s.store.UpdateExecution(ctx, job)
	if err != nil {
		s.log.WithError(err).WithField("execution_id", job.ID).Warn("failed to persist execution result")
		return job, nil
	}
	return stored, nil
}

// GetJob returns a stored execution job.
func (s *Service) GetJob(ctx context.Context, id string) (execution.Job, error) {
	return s.store.GetExecution(ctx, id)
}

func isJavaScript(language string) bool {
	switch strings.ToLower(language) {
	case "javascript", "js":
		return true
	}
	return false
}

func fail(job execution.Job, msg string) execution.Job {
	job.Status = execution.StatusFailed
	job.Error = msg
	job.FinishedAt = time.Now().UTC()
	return job
}

func (s *Service) run(job execution.Job, script string, inputs map[string]any) execution.Job {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	var logs []string
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		logs = append(logs, strings.Join(parts, " "))
		return goja.Undefined()
	})
	_ = vm.Set("console", console)
	_ = vm.Set("inputs", inputs)

	timer := time.AfterFunc(s.cfg.Timeout, func() {
		vm.Interrupt("execution timed out")
	})
	defer timer.Stop()

	start := time.Now()
	value, err := vm.RunString(script)
	if err == nil {
		// A main() entry point takes precedence over the script's own value.
		if main, ok := goja.AssertFunction(vm.Get("main")); ok {
			value, err = main(goja.Undefined())
		}
	}
	job.Duration = time.Since(start).String()
	job.Logs = logs
	job.FinishedAt = time.Now().UTC()

	if err != nil {
		job.Status = execution.StatusFailed
		if _, ok := err.(*goja.InterruptedError); ok {
			job.Error = fmt.Sprintf("execution timed out after %s", s.cfg.Timeout)
		} else {
			job.Error = err.Error()
		}
		return job
	}

	job.Status = execution.StatusCompleted
	job.Output = shapeOutput(value)
	return job
}

// shapeOutput normalizes the script's return value into a JSON object. Object
// results pass through; scalars are wrapped under "result".
func shapeOutput(value goja.Value) map[string]any {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil
	}
	exported := value.Export()
	if m, ok := exported.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": exported}
}
