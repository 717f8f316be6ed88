// Package transform provides a step worker that reshapes run data with an
// expression, exposing the result to downstream steps and conditions.
package transform

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftlab/conveyor/pkg/expression"
	"github.com/driftlab/conveyor/pkg/models"
)

type Worker struct {
	Input      string
	Expression string

	engine expression.Engine
}

func NewWorker(engine expression.Engine, config map[string]any) *Worker {
	input, _ := config["input"].(string)
	expr, _ := config["expression"].(string)

	return &Worker{
		Input:      input,
		Expression: expr,
		engine:     engine,
	}
}

func (w *Worker) Execute(ctx context.Context, input models.StepInput, execCtx models.ExecutionContext, logger *slog.Logger) (*models.StepOutput, error) {
	startedAt := time.Now().UTC()

	logger = logger.With("agent_id", "transform", "step_id", input.StepID)
	logger.DebugContext(ctx, "Evaluating transform expression", "expression", w.Expression)

	env := expression.RunEnv(&execCtx)

	data, err := w.extract(ctx, env)
	if err != nil {
		return failure(startedAt, "input_error", "failed to extract input data", err), nil
	}

	result, err := w.engine.Evaluate(ctx, w.Expression, map[string]any{"data": data, "steps": execCtx.StepOutputs, "input": execCtx.Input})
	if err != nil {
		return failure(startedAt, "transform_error", "transformation failed", err), nil
	}

	completedAt := time.Now().UTC()

	return &models.StepOutput{
		Code:        models.ResultOK,
		Summary:     "Transformation applied",
		Payload:     map[string]any{"result": result},
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMS:  completedAt.Sub(startedAt).Milliseconds(),
	}, nil
}

// extract selects the data the expression operates on. An empty input
// selector exposes all step outputs.
func (w *Worker) extract(ctx context.Context, env map[string]any) (any, error) {
	if w.Input == "" {
		return env["steps"], nil
	}

	return w.engine.Evaluate(ctx, w.Input, env)
}

// Expression errors are deterministic, so they map to a fatal result rather
// than a retryable one.
func failure(startedAt time.Time, code, summary string, err error) *models.StepOutput {
	completedAt := time.Now().UTC()

	return &models.StepOutput{
		Code:        models.ResultFatal,
		Summary:     summary,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMS:  completedAt.Sub(startedAt).Milliseconds(),
		Error: &models.StepError{
			Code:    code,
			Message: err.Error(),
		},
	}
}
