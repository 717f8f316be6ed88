package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/driftlab/conveyor/pkg/executor"
	"github.com/driftlab/conveyor/pkg/models"
	"github.com/driftlab/conveyor/pkg/registry"
)

// Runner binds workflow steps to registered workers. It enforces the step
// contract on both sides of every attempt: the input envelope is validated
// before dispatch and the output envelope after, and a contract violation
// fails the step immediately regardless of its retry policy.
type Runner struct {
	registry *registry.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	attempts map[string]map[string]int // run id -> step id -> attempts
}

func NewRunner(reg *registry.Registry, logger *slog.Logger) *Runner {
	return &Runner{
		registry: reg,
		logger:   logger,
		attempts: make(map[string]map[string]int),
	}
}

// runDirectives are the contract fields a caller passes through the run
// input rather than per-step configuration.
type runDirectives struct {
	TenantID    string                     `json:"tenant_id,omitempty"`
	Repo        *models.RepoContext        `json:"repo,omitempty"`
	PullRequest *models.PullRequestContext `json:"pull_request,omitempty"`
	RiskLevel   string                     `json:"risk_level,omitempty"`
	AllowWrites bool                       `json:"allow_writes,omitempty"`
}

// StepExecutor returns the step function the executor dispatches. Each
// invocation is one attempt; attempts are counted here so workers receive
// accurate attempt numbers without the runner seeing executor state.
func (r *Runner) StepExecutor() executor.StepExecutorFunc {
	return func(ctx context.Context, step *models.StepDefinition, execCtx *models.ExecutionContext) (any, error) {
		attempt := r.nextAttempt(execCtx.ID, step.ID)

		input, err := r.buildStepInput(step, execCtx, attempt)
		if err != nil {
			return nil, executor.Permanent(err)
		}

		if err := models.ValidateStepInput(&input); err != nil {
			return nil, executor.Permanent(fmt.Errorf("step input rejected: %w", err))
		}

		worker, err := r.registry.CreateWorker(ctx, step.AgentID, step.Configuration)
		if err != nil {
			return nil, executor.Permanent(err)
		}

		output, err := worker.Execute(ctx, input, *execCtx, r.logger)
		if err != nil {
			// infrastructure failure, subject to the step's retry policy
			return nil, fmt.Errorf("worker '%s' failed: %w", step.AgentID, err)
		}

		if err := models.ValidateStepOutput(step.ID, output); err != nil {
			return nil, executor.Permanent(err)
		}

		switch {
		case output.Code.ShouldContinue():
			if output.Code == models.ResultSkipped {
				r.logger.InfoContext(ctx, "Worker declined to act",
					"step_id", step.ID, "agent_id", step.AgentID, "summary", output.Summary)
			}

			return output.Payload, nil
		case output.Code.ShouldRetry():
			return nil, fmt.Errorf("step '%s' failed with retryable outcome: %w", step.ID, output.Error)
		default:
			return nil, executor.Permanent(fmt.Errorf("step '%s' failed with %s outcome: %w", step.ID, output.Code, output.Error))
		}
	}
}

func (r *Runner) buildStepInput(step *models.StepDefinition, execCtx *models.ExecutionContext, attempt int) (models.StepInput, error) {
	directives, err := decodeDirectives(execCtx.Input)
	if err != nil {
		return models.StepInput{}, err
	}

	tenantID := execCtx.TenantID
	if tenantID == "" {
		tenantID = directives.TenantID
	}

	return models.StepInput{
		RunID:         execCtx.ID,
		WorkflowID:    execCtx.WorkflowID,
		StepID:        step.ID,
		TenantID:      tenantID,
		StepType:      step.AgentID,
		Repo:          directives.Repo,
		PullRequest:   directives.PullRequest,
		RiskLevel:     directives.RiskLevel,
		AllowWrites:   directives.AllowWrites,
		Attempt:       attempt,
		MaxAttempts:   step.EffectiveRetry().MaxAttempts,
		Configuration: step.Configuration,
	}, nil
}

func decodeDirectives(input map[string]any) (runDirectives, error) {
	var directives runDirectives

	if len(input) == 0 {
		return directives, nil
	}

	data, err := json.Marshal(input)
	if err != nil {
		return directives, fmt.Errorf("failed to encode run input: %w", err)
	}

	if err := json.Unmarshal(data, &directives); err != nil {
		return directives, fmt.Errorf("failed to decode run directives: %w", err)
	}

	return directives, nil
}

func (r *Runner) nextAttempt(runID, stepID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := r.attempts[runID]
	if steps == nil {
		steps = make(map[string]int)
		r.attempts[runID] = steps
	}

	steps[stepID]++

	return steps[stepID]
}

// Release drops the attempt counters of a finished run. Call it after the
// executor returns; a long-lived Runner otherwise accumulates counters for
// every run it ever served.
func (r *Runner) Release(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, runID)
}
