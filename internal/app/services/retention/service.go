// Package retention prunes aged execution jobs and workflow runs on a
// schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/advanced-ai/backend/internal/app/storage"
	"github.com/advanced-ai/backend/pkg/logger"
)

// Config controls the sweeper.
type Config struct {
	// MaxAge is how long records are kept. Zero disables the sweeper.
	MaxAge time.Duration
	// Schedule is a cron expression, e.g. "@hourly".
	Schedule string
}

// Service runs the retention sweep on a cron schedule.
type Service struct {
	cfg        Config
	executions storage.ExecutionStore
	workflows  storage.WorkflowStore
	log        *logger.Logger
	cron       *cron.Cron
}

// New creates the retention service.
func New(cfg Config, executions storage.ExecutionStore, workflows storage.WorkflowStore, log *logger.Logger) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	if log == nil {
		log = logger.NewDefault("retention")
	}
	return &Service{
		cfg:        cfg,
		executions: executions,
		workflows:  workflows,
		log:        log,
	}
}

func (s *Service) Name() string { return "retention" }

// Start registers the sweep with the scheduler. A zero MaxAge leaves the
// scheduler off.
func (s *Service) Start(context.Context) error {
	if s.cfg.MaxAge <= 0 {
		s.log.Info("retention disabled, records are kept indefinitely")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	s.cron.Start()
	s.log.WithField("schedule", s.cfg.Schedule).WithField("max_age", s.cfg.MaxAge.String()).Info("retention sweeper started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep removes records older than MaxAge from both stores and returns the
// total number removed.
func (s *Service) Sweep(ctx context.Context) int64 {
	cutoff := time.Now().Add(-s.cfg.MaxAge)

	var total int64
	removed, err := s.executions.DeleteExecutionsBefore(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Warn("failed to prune executions")
	} else {
		total += removed
	}

	removed, err = s.workflows.DeleteWorkflowRunsBefore(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Warn("failed to prune workflow runs")
	} else {
		total += removed
	}

	if total > 0 {
		s.log.WithField("removed", total).Info("retention sweep completed")
	}
	return total
}
