// Package executor drives one workflow run to completion: it builds the
// execution plan, dispatches ready steps concurrently up to the parallelism
// cap, retries transient failures with backoff, cascades skips through the
// dependency graph, and reports final statistics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftlab/conveyor/pkg/eventbus"
	"github.com/driftlab/conveyor/pkg/events"
	"github.com/driftlab/conveyor/pkg/expression"
	"github.com/driftlab/conveyor/pkg/models"
	"github.com/driftlab/conveyor/pkg/plan"
	"github.com/driftlab/conveyor/pkg/scheduler"
)

// ErrRunCancelled marks a run that stopped because its context was
// cancelled. Distinguishable from genuine failure via errors.Is.
var ErrRunCancelled = errors.New("workflow run cancelled")

// ErrNoProgress marks a run where no step was ready, none was in flight and
// the run was not complete. A validated plan cannot reach this state.
var ErrNoProgress = errors.New("workflow run stalled: no steps ready and none in flight")

// StepExecutorFunc is the externally supplied unit of work. A returned error
// is a step failure subject to the step's retry policy; a returned value is
// recorded as the step's output. The execution context is a dispatch-time
// snapshot: it carries the outputs of every dependency, but not of steps
// completing while this one runs.
type StepExecutorFunc func(ctx context.Context, step *models.StepDefinition, execCtx *models.ExecutionContext) (any, error)

// ProgressFunc is invoked after every transition that changes the number of
// settled steps. Failed and skipped steps count toward completion.
type ProgressFunc func(completed, total int)

// Stats aggregates the outcome of one run.
type Stats struct {
	CompletedSteps int           `json:"completed_steps"`
	FailedSteps    int           `json:"failed_steps"`
	SkippedSteps   int           `json:"skipped_steps"`
	TotalRetries   int           `json:"total_retries"`
	Duration       time.Duration `json:"duration"`
}

// Result is the final outcome of a run. Executions exposes per-step detail
// for diagnostics; Success is the only aggregate signal.
type Result struct {
	Success    bool
	Stats      Stats
	Executions map[string]*models.StepExecution
	Err        error
}

// Executor runs workflows. Safe for reuse across runs; each Execute call
// owns its run state exclusively.
type Executor struct {
	engine   expression.Engine
	logger   *slog.Logger
	bus      eventbus.Publisher
	progress ProgressFunc
}

type Option func(*Executor)

// WithEventBus publishes run lifecycle events to the given publisher.
func WithEventBus(bus eventbus.Publisher) Option {
	return func(e *Executor) {
		e.bus = bus
	}
}

// WithProgress registers a progress callback for every run.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Executor) {
		e.progress = fn
	}
}

// New creates an executor.
func New(engine expression.Engine, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		engine: engine,
		logger: logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// stepResult carries one settled worker invocation back to the control loop.
type stepResult struct {
	stepID string
	output any
	err    error
}

// Execute runs the workflow to completion or cancellation. All mutations of
// execCtx.StepOutputs and the execution-state map happen on this goroutine;
// worker invocations run concurrently but settle through a single channel.
func (e *Executor) Execute(ctx context.Context, workflow *models.WorkflowDefinition, execCtx *models.ExecutionContext, fn StepExecutorFunc) Result {
	logger := e.logger.With("workflow_id", workflow.ID, "run_id", execCtx.ID)
	start := time.Now()

	executionPlan, err := plan.Build(workflow)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to build execution plan", "error", err)

		return Result{Err: fmt.Errorf("building execution plan: %w", err)}
	}

	executions := make(map[string]*models.StepExecution, executionPlan.TotalSteps)
	for _, stepID := range executionPlan.StepIDs() {
		executions[stepID] = &models.StepExecution{StepID: stepID, Status: models.StepStatusPending}
	}

	sched := scheduler.New(executionPlan, workflow.MaxParallel(), e.engine, logger)

	logger.InfoContext(ctx, "Starting workflow run",
		"total_steps", executionPlan.TotalSteps,
		"max_parallel", workflow.MaxParallel(),
		"critical_path", sched.CriticalPath(),
	)

	e.publish(ctx, logger, events.WorkflowStarted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowStartedEvent, workflow.ID, execCtx.ID),
		TotalSteps:  executionPlan.TotalSteps,
		MaxParallel: workflow.MaxParallel(),
	})

	settled := make(chan stepResult)
	inFlight := 0
	lastReported := -1

	report := func() {
		completed := settledCount(executions)
		if completed == lastReported {
			return
		}

		lastReported = completed

		if e.progress != nil {
			e.progress(completed, executionPlan.TotalSteps)
		}
	}

	for !sched.IsComplete(executions) {
		cancelled := ctx.Err() != nil
		if cancelled && inFlight == 0 {
			break
		}

		if !cancelled {
			batch, condSkipped := sched.NextBatch(ctx, executions, execCtx)

			for _, stepID := range condSkipped {
				e.publishSkip(ctx, logger, workflow, execCtx, stepID, "condition not met")
			}

			for _, stepID := range batch {
				step, _ := executionPlan.Step(stepID)
				e.startStep(ctx, logger, workflow, execCtx, step, executions[stepID], fn, settled)
				inFlight++
			}
		}

		for _, stepID := range sched.CascadeSkips(executions) {
			e.publishSkip(ctx, logger, workflow, execCtx, stepID, "dependency failed or skipped")
		}

		report()

		if sched.IsComplete(executions) {
			break
		}

		if inFlight == 0 {
			if cancelled {
				break
			}

			logger.ErrorContext(ctx, "Run stalled with no work in flight")

			return Result{
				Stats:      e.finalStats(executions, time.Since(start)),
				Executions: executions,
				Err:        ErrNoProgress,
			}
		}

		res := <-settled
		inFlight--

		step, _ := executionPlan.Step(res.stepID)
		exec := executions[res.stepID]

		switch {
		case res.err == nil:
			e.completeStep(ctx, logger, workflow, execCtx, exec, res.output)
		case ctx.Err() == nil && !IsPermanent(res.err) && exec.Retries+1 < step.EffectiveRetry().MaxAttempts:
			e.retryStep(ctx, logger, workflow, execCtx, step, exec, res.err, fn, settled)
			inFlight++
		default:
			e.failStep(ctx, logger, workflow, execCtx, exec, res.err)
		}

		report()
	}

	report()

	stats := e.finalStats(executions, time.Since(start))

	if !sched.IsComplete(executions) {
		logger.WarnContext(ctx, "Workflow run cancelled",
			"completed_steps", stats.CompletedSteps, "duration", stats.Duration)

		e.publish(ctx, logger, events.WorkflowCancelled{
			BaseEvent: events.NewBaseEvent(events.WorkflowCancelledEvent, workflow.ID, execCtx.ID),
			Duration:  stats.Duration,
		})

		return Result{Stats: stats, Executions: executions, Err: ErrRunCancelled}
	}

	success := stats.FailedSteps == 0

	logger.InfoContext(ctx, "Workflow run finished",
		"success", success,
		"completed_steps", stats.CompletedSteps,
		"failed_steps", stats.FailedSteps,
		"skipped_steps", stats.SkippedSteps,
		"total_retries", stats.TotalRetries,
		"duration", stats.Duration,
	)

	e.publish(ctx, logger, events.WorkflowFinished{
		BaseEvent:      events.NewBaseEvent(events.WorkflowFinishedEvent, workflow.ID, execCtx.ID),
		Success:        success,
		CompletedSteps: stats.CompletedSteps,
		FailedSteps:    stats.FailedSteps,
		SkippedSteps:   stats.SkippedSteps,
		TotalRetries:   stats.TotalRetries,
		Duration:       stats.Duration,
	})

	return Result{Success: success, Stats: stats, Executions: executions}
}

func (e *Executor) startStep(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, execCtx *models.ExecutionContext, step *models.StepDefinition, exec *models.StepExecution, fn StepExecutorFunc, settled chan<- stepResult) {
	now := time.Now().UTC()
	exec.Status = models.StepStatusRunning
	exec.StartedAt = &now

	logger.InfoContext(ctx, "Dispatching step", "step_id", step.ID, "agent_id", step.AgentID)

	e.publish(ctx, logger, events.StepStarted{
		BaseEvent: events.NewBaseEvent(events.StepStartedEvent, workflow.ID, execCtx.ID),
		StepID:    step.ID,
		AgentID:   step.AgentID,
		Attempt:   exec.Retries,
	})

	// snapshot on the control loop: the worker goroutine must never share
	// the live StepOutputs map with completeStep
	view := execCtx.Snapshot()

	go func() {
		output, err := fn(ctx, step, view)
		settled <- stepResult{stepID: step.ID, output: output, err: err}
	}()
}

func (e *Executor) completeStep(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, execCtx *models.ExecutionContext, exec *models.StepExecution, output any) {
	now := time.Now().UTC()
	exec.Status = models.StepStatusCompleted
	exec.Output = output
	exec.CompletedAt = &now

	// write happens-before any dependent dispatch: the scheduler only
	// returns a step once this status reads completed
	execCtx.StepOutputs[exec.StepID] = output

	logger.InfoContext(ctx, "Step completed", "step_id", exec.StepID, "retries", exec.Retries)

	e.publish(ctx, logger, events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, workflow.ID, execCtx.ID),
		StepID:    exec.StepID,
		Duration:  durationOf(exec),
	})
}

func (e *Executor) retryStep(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, execCtx *models.ExecutionContext, step *models.StepDefinition, exec *models.StepExecution, cause error, fn StepExecutorFunc, settled chan<- stepResult) {
	exec.Retries++
	policy := step.EffectiveRetry()
	backoff := policy.Delay(exec.Retries - 1)

	logger.WarnContext(ctx, "Step failed, retrying",
		"step_id", step.ID, "attempt", exec.Retries, "max_attempts", policy.MaxAttempts,
		"backoff", backoff, "error", cause)

	e.publish(ctx, logger, events.StepRetrying{
		BaseEvent: events.NewBaseEvent(events.StepRetryingEvent, workflow.ID, execCtx.ID),
		StepID:    step.ID,
		Attempt:   exec.Retries,
		Backoff:   backoff,
		Error:     cause.Error(),
	})

	view := execCtx.Snapshot()

	// the step keeps its capacity slot while it backs off
	go func() {
		timer := time.NewTimer(backoff)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			settled <- stepResult{stepID: step.ID, err: fmt.Errorf("retry abandoned: %w", ctx.Err())}

			return
		}

		output, err := fn(ctx, step, view)
		settled <- stepResult{stepID: step.ID, output: output, err: err}
	}()
}

func (e *Executor) failStep(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, execCtx *models.ExecutionContext, exec *models.StepExecution, cause error) {
	now := time.Now().UTC()
	exec.Status = models.StepStatusFailed
	exec.Err = cause
	exec.CompletedAt = &now

	logger.ErrorContext(ctx, "Step failed permanently",
		"step_id", exec.StepID, "retries", exec.Retries, "error", cause)

	e.publish(ctx, logger, events.StepFailed{
		BaseEvent: events.NewBaseEvent(events.StepFailedEvent, workflow.ID, execCtx.ID),
		StepID:    exec.StepID,
		Error:     cause.Error(),
		Retries:   exec.Retries,
	})
}

func (e *Executor) publishSkip(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, execCtx *models.ExecutionContext, stepID, reason string) {
	logger.InfoContext(ctx, "Step skipped", "step_id", stepID, "reason", reason)

	e.publish(ctx, logger, events.StepSkipped{
		BaseEvent: events.NewBaseEvent(events.StepSkippedEvent, workflow.ID, execCtx.ID),
		StepID:    stepID,
		Reason:    reason,
	})
}

func (e *Executor) publish(ctx context.Context, logger *slog.Logger, event events.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Executor) finalStats(executions map[string]*models.StepExecution, duration time.Duration) Stats {
	stats := Stats{Duration: duration}

	for _, exec := range executions {
		stats.TotalRetries += exec.Retries

		switch exec.Status {
		case models.StepStatusCompleted:
			stats.CompletedSteps++
		case models.StepStatusFailed:
			stats.FailedSteps++
		case models.StepStatusSkipped:
			stats.SkippedSteps++
		}
	}

	return stats
}

func settledCount(executions map[string]*models.StepExecution) int {
	count := 0

	for _, exec := range executions {
		if exec.Status.Terminal() {
			count++
		}
	}

	return count
}

func durationOf(exec *models.StepExecution) time.Duration {
	if exec.StartedAt == nil || exec.CompletedAt == nil {
		return 0
	}

	return exec.CompletedAt.Sub(*exec.StartedAt)
}
