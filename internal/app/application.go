package app

import (
	"context"
	"fmt"
	"time"

	"github.com/advanced-ai/backend/internal/app/services/compute"
	"github.com/advanced-ai/backend/internal/app/services/engine"
	"github.com/advanced-ai/backend/internal/app/services/retention"
	"github.com/advanced-ai/backend/internal/app/services/workflows"
	"github.com/advanced-ai/backend/internal/app/storage"
	"github.com/advanced-ai/backend/internal/app/storage/memory"
	"github.com/advanced-ai/backend/internal/app/system"
	"github.com/advanced-ai/backend/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Executions storage.ExecutionStore
	Workflows  storage.WorkflowStore
}

// Settings carries the application-level knobs the services need.
type Settings struct {
	AppName           string
	Version           string
	APIPrefix         string
	Engine            engine.Config
	Compute           compute.Config
	ResponseCache     engine.ResponseCache
	RetentionMaxAge   time.Duration
	RetentionSchedule string
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager  *system.Manager
	log      *logger.Logger
	settings Settings
	stores   Stores

	startedAt time.Time

	Engine    *engine.Service
	Compute   *compute.Service
	Workflows *workflows.Service
	Retention *retention.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, settings Settings, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if settings.AppName == "" {
		settings.AppName = "Advanced AI Backend"
	}
	if settings.Version == "" {
		settings.Version = "1.0.0"
	}

	mem := memory.New()
	if stores.Executions == nil {
		stores.Executions = mem
	}
	if stores.Workflows == nil {
		stores.Workflows = mem
	}

	manager := system.NewManager(log.WithComponent("system"))

	engineService := engine.New(settings.Engine, settings.ResponseCache, log.WithComponent("engine"))
	computeService := compute.New(settings.Compute, stores.Executions, log.WithComponent("compute"))
	workflowService := workflows.New(engineService, computeService, stores.Workflows, log.WithComponent("workflows"))
	retentionService := retention.New(retention.Config{
		MaxAge:   settings.RetentionMaxAge,
		Schedule: settings.RetentionSchedule,
	}, stores.Executions, stores.Workflows, log.WithComponent("retention"))

	for _, svc := range []system.Service{engineService, computeService, workflowService, retentionService} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		settings:  settings,
		stores:    stores,
		Engine:    engineService,
		Compute:   computeService,
		Workflows: workflowService,
		Retention: retentionService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	a.startedAt = time.Now()
	return nil
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Settings returns the application settings.
func (a *Application) Settings() Settings { return a.settings }

// StartedAt reports when Start completed. Zero before the first Start.
func (a *Application) StartedAt() time.Time { return a.startedAt }

// ExecutionStore exposes the execution store for handlers.
func (a *Application) ExecutionStore() storage.ExecutionStore { return a.stores.Executions }

// WorkflowStore exposes the workflow store for handlers.
func (a *Application) WorkflowStore() storage.WorkflowStore { return a.stores.Workflows }
