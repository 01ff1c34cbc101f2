package system

import (
	"context"
	"fmt"

	"github.com/advanced-ai/backend/pkg/logger"
)

// Manager starts registered services in registration order and stops them in
// reverse order.
type Manager struct {
	services []Service
	names    map[string]struct{}
	log      *logger.Logger
}

// NewManager creates an empty manager.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{names: make(map[string]struct{}), log: log}
}

// Register adds a service. Names must be unique.
func (m *Manager) Register(svc Service) error {
	name := svc.Name()
	if name == "" {
		return fmt.Errorf("service has no name")
	}
	if _, exists := m.names[name]; exists {
		return fmt.Errorf("service %q already registered", name)
	}
	m.names[name] = struct{}{}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every service in order. On failure the already-started
// services are stopped before returning.
func (m *Manager) Start(ctx context.Context) error {
	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			m.stopFrom(ctx, i-1)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.log.WithField("service", svc.Name()).Debug("service started")
	}
	return nil
}

// Stop stops every service in reverse order. All services are attempted; the
// first error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	return m.stopFrom(ctx, len(m.services)-1)
}

func (m *Manager) stopFrom(ctx context.Context, idx int) error {
	var firstErr error
	for i := idx; i >= 0; i-- {
		svc := m.services[i]
		if err := svc.Stop(ctx); err != nil {
			m.log.WithError(err).WithField("service", svc.Name()).Warn("service stop failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
		}
	}
	return firstErr
}
