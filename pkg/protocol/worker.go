// Package protocol defines the interfaces between the engine and step
// workers. Workers are registered through factories so workflow definitions
// can reference them by agent id alone.
package protocol

import (
	"context"
	"log/slog"

	"github.com/driftlab/conveyor/pkg/models"
)

// StepWorker executes one attempt of one step. The execution context is a
// read-only view; workers communicate results exclusively through the
// returned envelope. A non-nil error reports an infrastructure problem
// (the worker could not run), not a domain failure (use a failure result
// code for those).
type StepWorker interface {
	Execute(ctx context.Context, input models.StepInput, execCtx models.ExecutionContext, logger *slog.Logger) (*models.StepOutput, error)
}

// WorkerFactory creates StepWorker instances from a step's configuration.
type WorkerFactory interface {
	// ID returns the agent id workflow definitions use to reference this worker.
	ID() string

	// Name returns a human-readable name for the worker.
	Name() string

	// Description returns a brief description of what the worker does.
	Description() string

	// Schema returns the JSON schema for the worker configuration.
	Schema() map[string]any

	// Create builds a worker from the step's configuration block.
	Create(ctx context.Context, config map[string]any) (StepWorker, error)
}
