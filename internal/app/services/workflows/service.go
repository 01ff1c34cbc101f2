// Package workflows chains the engine and compute services into multi-step
// pipelines. Each run is persisted so callers can poll for the outcome.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/advanced-ai/backend/internal/app/domain/execution"
	"github.com/advanced-ai/backend/internal/app/domain/generation"
	"github.com/advanced-ai/backend/internal/app/domain/sentiment"
	"github.com/advanced-ai/backend/internal/app/domain/workflow"
	"github.com/advanced-ai/backend/internal/app/metrics"
	"github.com/advanced-ai/backend/internal/app/storage"
	"github.com/advanced-ai/backend/pkg/logger"
)

// ErrUnknownWorkflow is returned for a workflow type that is not registered.
var ErrUnknownWorkflow = errors.New("unknown workflow type")

// ValidationError reports a bad workflow request. Handlers map it to a 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Engine is the subset of the engine service the workflows need.
type Engine interface {
	GenerateText(ctx context.Context, prompt string, messages []generation.Message) (generation.Response, error)
	AnalyzeSentiment(ctx context.Context, text string) (sentiment.Analysis, error)
}

// Executor runs scripts in the sandbox.
type Executor interface {
	Execute(ctx context.Context, script, language string, inputs map[string]any) (execution.Job, error)
}

type stepFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// Service dispatches workflow runs.
type Service struct {
	engine   Engine
	executor Executor
	store    storage.WorkflowStore
	log      *logger.Logger
	registry map[workflow.Type]stepFunc
}

// New wires the workflow service.
func New(engine Engine, executor Executor, store storage.WorkflowStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("workflows")
	}
	s := &Service{
		engine:   engine,
		executor: executor,
		store:    store,
		log:      log,
	}
	s.registry = map[workflow.Type]stepFunc{
		workflow.TypeTextGeneration:    s.runTextGeneration,
		workflow.TypeCodeAnalysis:      s.runCodeAnalysis,
		workflow.TypeFinancialAnalysis: s.runFinancialAnalysis,
	}
	return s
}

func (s *Service) Name() string { return "workflows" }

func (s *Service) Start(context.Context) error { return nil }

func (s *Service) Stop(context.Context) error { return nil }

// Types lists the registered workflow types.
func (s *Service) Types() []workflow.Type {
	return []workflow.Type{
		workflow.TypeTextGeneration,
		workflow.TypeCodeAnalysis,
		workflow.TypeFinancialAnalysis,
	}
}

// Run executes the named workflow synchronously and returns the stored run.
func (s *Service) Run(ctx context.Context, typ workflow.Type, inputs map[string]any) (workflow.Run, error) {
	step, ok := s.registry[typ]
	if !ok {
		return workflow.Run{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, typ)
	}

	run, err := s.store.CreateWorkflowRun(ctx, workflow.Run{
		Type:      typ,
		Status:    workflow.StatusRunning,
		Inputs:    inputs,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return workflow.Run{}, fmt.Errorf("create workflow run: %w", err)
	}

	result, stepErr := step(ctx, inputs)
	run.FinishedAt = time.Now().UTC()
	if stepErr != nil {
		run.Status = workflow.StatusFailed
		run.Error = stepErr.Error()
	} else {
		run.Status = workflow.StatusCompleted
		run.Result = result
	}

	metrics.RecordWorkflowRun(string(typ), string(run.Status), run.FinishedAt.Sub(run.StartedAt))

	stored, err := s.store.UpdateWorkflowRun(ctx, run)
	if err != nil {
		s.log.WithError(err).WithField("run_id", run.ID).Warn("failed to persist workflow run")
		stored = run
	}
	if stepErr != nil {
		return stored, stepErr
	}
	return stored, nil
}

// GetRun returns a stored workflow run.
func (s *Service) GetRun(ctx context.Context, id string) (workflow.Run, error) {
	return s.store.GetWorkflowRun(ctx, id)
}

// ListRuns returns stored runs, optionally filtered by type.
func (s *Service) ListRuns(ctx context.Context, typ workflow.Type) ([]workflow.Run, error) {
	return s.store.ListWorkflowRuns(ctx, typ)
}

func stringInput(inputs map[string]any, key string) string {
	v, _ := inputs[key].(string)
	return v
}

// runTextGeneration scores the sentiment of the prompt, then generates text
// for it.
func (s *Service) runTextGeneration(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	prompt := stringInput(inputs, "prompt")
	if prompt == "" {
		return nil, validationErrorf("text_generation workflow requires a prompt input")
	}

	analysis, err := s.engine.AnalyzeSentiment(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze sentiment: %w", err)
	}

	resp, err := s.engine.GenerateText(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("generate text: %w", err)
	}

	return map[string]any{
		"generated_text":     resp,
		"sentiment_analysis": analysis,
	}, nil
}

// runCodeAnalysis explains the submitted code, executes it when the language
// is supported, and asks for optimization suggestions.
func (s *Service) runCodeAnalysis(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	code := stringInput(inputs, "code")
	if code == "" {
		return nil, validationErrorf("code_analysis workflow requires a code input")
	}
	language := stringInput(inputs, "language")
	if language == "" {
		language = "javascript"
	}

	explanation, err := s.engine.GenerateText(ctx, fmt.Sprintf("Explain this %s code: %s", language, code), nil)
	if err != nil {
		return nil, fmt.Errorf("explain code: %w", err)
	}

	job, err := s.executor.Execute(ctx, code, language, nil)
	if err != nil {
		return nil, fmt.Errorf("execute code: %w", err)
	}

	suggestions, err := s.engine.GenerateText(ctx, fmt.Sprintf("Suggest optimizations for this %s code: %s", language, code), nil)
	if err != nil {
		return nil, fmt.Errorf("suggest optimizations: %w", err)
	}

	return map[string]any{
		"explanation":              explanation,
		"execution_result":         job,
		"optimization_suggestions": suggestions,
	}, nil
}

// runFinancialAnalysis builds an investment strategy, generates profit
// calculation code, runs it, and produces a risk assessment.
func (s *Service) runFinancialAnalysis(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	query := stringInput(inputs, "query")
	if query == "" {
		return nil, validationErrorf("financial_analysis workflow requires a query input")
	}

	strategy, err := s.engine.GenerateText(ctx, fmt.Sprintf("Develop an investment strategy for: %s", query), nil)
	if err != nil {
		return nil, fmt.Errorf("generate strategy: %w", err)
	}

	codeResp, err := s.engine.GenerateText(ctx, fmt.Sprintf("Write code to calculate potential profit for: %s", query), nil)
	if err != nil {
		return nil, fmt.Errorf("generate profit code: %w", err)
	}

	result := map[string]any{
		"investment_strategy":     strategy,
		"profit_calculation_code": codeResp,
	}

	if codeResp.Code != "" {
		job, err := s.executor.Execute(ctx, codeResp.Code, codeResp.Language, nil)
		if err != nil {
			return nil, fmt.Errorf("execute profit code: %w", err)
		}
		result["execution_result"] = job
	}

	risk, err := s.engine.GenerateText(ctx, fmt.Sprintf("Assess the risks of: %s", query), nil)
	if err != nil {
		return nil, fmt.Errorf("assess risk: %w", err)
	}
	result["risk_assessment"] = risk

	return result, nil
}
