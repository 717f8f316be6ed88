// Package scheduler decides which steps of a run may start now, respecting
// the parallelism cap, priority ordering and per-step conditions.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftlab/conveyor/pkg/expression"
	"github.com/driftlab/conveyor/pkg/models"
	"github.com/driftlab/conveyor/pkg/plan"
)

// Scheduler is a stateless policy layer over an execution plan. Readiness is
// recomputed from live execution state on every call: retries and
// conditional skips change which steps are ready mid-run, so plan levels are
// never used as an execution barrier.
type Scheduler struct {
	plan        *plan.ExecutionPlan
	maxParallel int
	engine      expression.Engine
	logger      *slog.Logger
}

// New creates a scheduler for one run. maxParallel <= 0 falls back to the
// definition default.
func New(executionPlan *plan.ExecutionPlan, maxParallel int, engine expression.Engine, logger *slog.Logger) *Scheduler {
	if maxParallel <= 0 {
		maxParallel = models.DefaultMaxParallelSteps
	}

	return &Scheduler{
		plan:        executionPlan,
		maxParallel: maxParallel,
		engine:      engine,
		logger:      logger,
	}
}

// NextBatch returns the next step ids eligible to start, at most
// maxParallel minus the currently running count, preserving priority order.
// Steps whose condition evaluates false (or fails to evaluate) are marked
// skipped as a side effect and returned separately.
func (s *Scheduler) NextBatch(ctx context.Context, executions map[string]*models.StepExecution, execCtx *models.ExecutionContext) (batch, skipped []string) {
	available := s.maxParallel - countRunning(executions)
	if available <= 0 {
		return nil, nil
	}

	batch = make([]string, 0, available)

	for _, stepID := range s.plan.ReadySteps(executions) {
		step, ok := s.plan.Step(stepID)
		if !ok {
			continue
		}

		shouldRun, err := expression.EvalCondition(ctx, s.engine, step.Condition, execCtx)
		if err != nil {
			s.logger.WarnContext(ctx, "Condition evaluation failed, skipping step",
				"step_id", stepID, "condition", step.Condition, "error", err)

			markSkipped(executions[stepID])

			skipped = append(skipped, stepID)

			continue
		}

		if !shouldRun {
			s.logger.DebugContext(ctx, "Condition not met, skipping step",
				"step_id", stepID, "condition", step.Condition)

			markSkipped(executions[stepID])

			skipped = append(skipped, stepID)

			continue
		}

		batch = append(batch, stepID)
		if len(batch) == available {
			break
		}
	}

	return batch, skipped
}

// IsComplete reports whether every step of the run reached a terminal state.
func (s *Scheduler) IsComplete(executions map[string]*models.StepExecution) bool {
	for _, exec := range executions {
		if !exec.Status.Terminal() {
			return false
		}
	}

	return true
}

// CascadeSkips marks every pending step blocked by a failed or skipped
// dependency, repeating until no further step qualifies, and returns the ids
// it marked. One pass per level of dependents would also converge across
// loop iterations, but running to fixpoint here keeps the completion check
// honest when nothing is in flight.
func (s *Scheduler) CascadeSkips(executions map[string]*models.StepExecution) []string {
	var marked []string

	for {
		changed := false

		for _, stepID := range s.plan.StepIDs() {
			exec := executions[stepID]
			if exec == nil || exec.Status != models.StepStatusPending {
				continue
			}

			if s.plan.ShouldSkip(stepID, executions) {
				markSkipped(exec)

				marked = append(marked, stepID)
				changed = true
			}
		}

		if !changed {
			return marked
		}
	}
}

func countRunning(executions map[string]*models.StepExecution) int {
	running := 0

	for _, exec := range executions {
		if exec.Status == models.StepStatusRunning {
			running++
		}
	}

	return running
}

func markSkipped(exec *models.StepExecution) {
	now := time.Now().UTC()
	exec.Status = models.StepStatusSkipped
	exec.CompletedAt = &now
}
