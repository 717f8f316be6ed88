package expression

import (
	"context"
	"fmt"

	"github.com/driftlab/conveyor/pkg/models"
)

// EvalCondition evaluates a step's gating condition against the run context.
// An empty condition is always true. The environment exposes:
//
//	steps    - outputs of completed steps, keyed by step id
//	input    - the original workflow input
//	workflow - run metadata (id, run_id, tenant_id)
func EvalCondition(ctx context.Context, engine Engine, condition string, execCtx *models.ExecutionContext) (bool, error) {
	if condition == "" {
		return true, nil
	}

	result, err := engine.Evaluate(ctx, condition, RunEnv(execCtx))
	if err != nil {
		return false, err
	}

	verdict, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %T, want bool", condition, result)
	}

	return verdict, nil
}

// RunEnv builds the evaluation environment shared by step conditions and
// expression-based workers.
func RunEnv(execCtx *models.ExecutionContext) map[string]any {
	return map[string]any{
		"steps": execCtx.StepOutputs,
		"input": execCtx.Input,
		"workflow": map[string]any{
			"id":        execCtx.WorkflowID,
			"run_id":    execCtx.ID,
			"tenant_id": execCtx.TenantID,
		},
	}
}
