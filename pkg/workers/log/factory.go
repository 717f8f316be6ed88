package log

import (
	"context"

	"github.com/driftlab/conveyor/pkg/protocol"
)

// Factory creates log workers.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the agent id for the log worker.
func (*Factory) ID() string {
	return "log"
}

// Name returns the name of the worker.
func (*Factory) Name() string {
	return "Log"
}

// Description returns a brief description of the worker.
func (*Factory) Description() string {
	return "Logs a message at a specified level."
}

// Create creates a new log worker with the provided configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.StepWorker, error) {
	if config == nil {
		config = map[string]any{}
	}

	return NewWorker(config), nil
}

// Schema returns the JSON schema for the worker configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to log.",
				"examples": []string{
					"Triage completed",
					"Opening pull request for review",
				},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "warning", "error"},
			},
		},
		"required": []string{"message"},
	}
}
