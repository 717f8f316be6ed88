package transform

import (
	"context"

	"github.com/driftlab/conveyor/pkg/expression"
	"github.com/driftlab/conveyor/pkg/protocol"
)

// Factory creates transform workers bound to an expression engine.
type Factory struct {
	engine expression.Engine
}

func NewFactory(engine expression.Engine) *Factory {
	return &Factory{engine: engine}
}

// ID returns the agent id for the transform worker.
func (f *Factory) ID() string {
	return "transform"
}

// Name returns the name of the worker.
func (f *Factory) Name() string {
	return "Transform"
}

// Description returns a brief description of the worker.
func (f *Factory) Description() string {
	return "Transforms run data using an expression. The result is exposed to downstream steps."
}

// Create creates a new transform worker with the provided configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.StepWorker, error) {
	if config == nil {
		config = map[string]any{}
	}

	return NewWorker(f.engine, config), nil
}

// Schema returns the JSON schema for the worker configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Expression selecting the input data. If empty, uses all step outputs.",
				"examples": []string{
					"",
					"steps.fetch_issue",
					"steps.analyze.result",
				},
			},
			"expression": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Expression applied to the selected data, available as 'data'.",
				"examples": []string{
					"data.title",
					"len(data)",
					`{"branch": "fix/" + input.issue_id}`,
				},
			},
		},
		"required": []string{"expression"},
	}
}
