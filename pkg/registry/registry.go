// Package registry maps agent ids to step worker factories.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/driftlab/conveyor/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger          *slog.Logger
	workerFactories map[string]protocol.WorkerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:          logger,
		workerFactories: make(map[string]protocol.WorkerFactory),
	}
}

// Register adds a worker factory under its own id. A later registration with
// the same id replaces the earlier one.
func (r *Registry) Register(factory protocol.WorkerFactory) {
	r.workerFactories[factory.ID()] = factory
}

// IsRegistered reports whether an agent id has a factory.
func (r *Registry) IsRegistered(agentID string) bool {
	_, ok := r.workerFactories[agentID]

	return ok
}

// AvailableWorkers returns the registered agent ids in sorted order.
func (r *Registry) AvailableWorkers() []string {
	ids := make([]string, 0, len(r.workerFactories))
	for id := range r.workerFactories {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// CreateWorker builds a worker for the given agent id, validating the
// configuration against the factory's schema first.
func (r *Registry) CreateWorker(ctx context.Context, agentID string, config map[string]any) (protocol.StepWorker, error) {
	factory, ok := r.workerFactories[agentID]
	if !ok {
		return nil, fmt.Errorf("agent id '%s' not registered", agentID)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("invalid configuration for agent '%s': %w", agentID, err)
	}

	return factory.Create(ctx, config)
}

func validateConfig(schema, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return err
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
