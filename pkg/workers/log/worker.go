// Package log provides a step worker that records a message through the
// engine's structured logger. Useful as a pipeline checkpoint and for
// smoke-testing workflow definitions.
package log

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftlab/conveyor/pkg/models"
)

type Worker struct {
	Message string
	Level   string
}

func NewWorker(config map[string]any) *Worker {
	message, _ := config["message"].(string)

	level, _ := config["level"].(string)
	if level == "" {
		level = "info"
	}

	return &Worker{Message: message, Level: level}
}

func (w *Worker) Execute(ctx context.Context, input models.StepInput, _ models.ExecutionContext, logger *slog.Logger) (*models.StepOutput, error) {
	startedAt := time.Now().UTC()

	logger = logger.With("agent_id", "log", "step_id", input.StepID)

	switch w.Level {
	case "debug":
		logger.DebugContext(ctx, w.Message)
	case "warn", "warning":
		logger.WarnContext(ctx, w.Message)
	case "error":
		logger.ErrorContext(ctx, w.Message)
	default:
		logger.InfoContext(ctx, w.Message)
	}

	completedAt := time.Now().UTC()

	return &models.StepOutput{
		Code:        models.ResultOK,
		Summary:     "Message logged",
		Payload:     map[string]any{"message": w.Message, "level": w.Level},
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMS:  completedAt.Sub(startedAt).Milliseconds(),
	}, nil
}
