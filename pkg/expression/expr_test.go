package expression

import (
	"context"
	"testing"

	"github.com/driftlab/conveyor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEngine_Evaluate(t *testing.T) {
	engine := NewExprEngine()
	ctx := context.Background()

	tests := []struct {
		name       string
		expression string
		data       map[string]any
		expected   any
		wantErr    bool
	}{
		{
			name:       "equality on nested field",
			expression: `steps.analyze.verdict == "approve"`,
			data: map[string]any{
				"steps": map[string]any{
					"analyze": map[string]any{"verdict": "approve"},
				},
			},
			expected: true,
		},
		{
			name:       "numeric comparison",
			expression: "steps.scan.issues > 3",
			data: map[string]any{
				"steps": map[string]any{
					"scan": map[string]any{"issues": 5},
				},
			},
			expected: true,
		},
		{
			name:       "logical combinators",
			expression: "a && (b || c)",
			data:       map[string]any{"a": true, "b": false, "c": true},
			expected:   true,
		},
		{
			name:       "undefined variable is nil",
			expression: "missing == nil",
			data:       map[string]any{},
			expected:   true,
		},
		{
			name:       "empty expression rejected",
			expression: "",
			wantErr:    true,
		},
		{
			name:       "syntax error",
			expression: "a ==",
			data:       map[string]any{"a": 1},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Evaluate(ctx, tt.expression, tt.data)

			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExprEngine_CachesPrograms(t *testing.T) {
	engine := NewExprEngine()
	ctx := context.Background()

	for range 3 {
		result, err := engine.Evaluate(ctx, "x + 1", map[string]any{"x": 1})
		require.NoError(t, err)
		assert.Equal(t, 2, result)
	}

	assert.Len(t, engine.cache, 1)
}

func TestEvalCondition(t *testing.T) {
	engine := NewExprEngine()
	ctx := context.Background()

	execCtx := &models.ExecutionContext{
		ID:         "run-1",
		WorkflowID: "wf-1",
		StepOutputs: map[string]any{
			"triage": map[string]any{"severity": "high"},
		},
		Input: map[string]any{"dry_run": false},
	}

	tests := []struct {
		name      string
		condition string
		expected  bool
		wantErr   bool
	}{
		{name: "empty condition is true", condition: "", expected: true},
		{name: "step output gate", condition: `steps.triage.severity == "high"`, expected: true},
		{name: "workflow input gate", condition: "!input.dry_run", expected: true},
		{name: "run metadata", condition: `workflow.run_id == "run-1"`, expected: true},
		{name: "false gate", condition: `steps.triage.severity == "low"`, expected: false},
		{name: "non-boolean result", condition: "steps.triage.severity", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := EvalCondition(ctx, engine, tt.condition, execCtx)

			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, verdict)
		})
	}
}
