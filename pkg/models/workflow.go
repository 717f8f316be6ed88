// Package models defines the core domain models for DAG-based workflow execution.
package models

import "time"

// WorkflowType tags the kind of maintenance pipeline a workflow implements.
type WorkflowType string

const (
	WorkflowTypeIssueToCode        WorkflowType = "issue_to_code"
	WorkflowTypeConflictResolution WorkflowType = "conflict_resolution"
	WorkflowTypeInfraChange        WorkflowType = "infra_change"
)

// DefaultMaxParallelSteps applies when a definition does not set a cap.
const DefaultMaxParallelSteps = 4

// WorkflowDefinition is the static, declarative description of a workflow.
// It is immutable once handed to the engine; one definition may back many runs.
type WorkflowDefinition struct {
	ID               string            `json:"id"                 yaml:"id"                 validate:"required"`
	Type             WorkflowType      `json:"type"               yaml:"type"`
	Name             string            `json:"name"               yaml:"name"               validate:"required,min=3"`
	MaxParallelSteps int               `json:"max_parallel_steps" yaml:"max_parallel_steps" validate:"gte=0"`
	Steps            []*StepDefinition `json:"steps"              yaml:"steps"              validate:"required,min=1,dive"`
	Metadata         map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// StepDefinition describes one unit of work inside a workflow. AgentID is an
// opaque identifier resolved against the worker registry; the engine never
// interprets it.
type StepDefinition struct {
	ID            string         `json:"id"                      yaml:"id"            validate:"required"`
	AgentID       string         `json:"agent_id"                yaml:"agent_id"      validate:"required"`
	Name          string         `json:"name"                    yaml:"name"`
	DependsOn     []string       `json:"depends_on,omitempty"    yaml:"depends_on,omitempty"`
	Priority      int            `json:"priority,omitempty"      yaml:"priority,omitempty"`
	Retry         *RetryPolicy   `json:"retry,omitempty"         yaml:"retry,omitempty"`
	Condition     string         `json:"condition,omitempty"     yaml:"condition,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty" yaml:"configuration,omitempty"`
}

// RetryPolicy controls re-dispatch of a step whose worker failed with a
// retryable outcome.
type RetryPolicy struct {
	MaxAttempts       int     `json:"max_attempts"                 yaml:"max_attempts"       validate:"gte=1"`
	InitialDelayMS    int64   `json:"initial_delay_ms"             yaml:"initial_delay_ms"   validate:"gte=0"`
	BackoffMultiplier float64 `json:"backoff_multiplier,omitempty" yaml:"backoff_multiplier,omitempty" validate:"gte=0"`
	MaxDelayMS        int64   `json:"max_delay_ms,omitempty"       yaml:"max_delay_ms,omitempty"       validate:"gte=0"`
}

// DefaultRetryPolicy is applied to steps that declare no policy: a single
// attempt, no backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 1}

// EffectiveRetry returns the step's retry policy or the default.
func (s *StepDefinition) EffectiveRetry() RetryPolicy {
	if s.Retry == nil {
		return DefaultRetryPolicy
	}

	return *s.Retry
}

// Delay computes the backoff before re-dispatching after the given attempt
// (0-based): min(initialDelay × multiplier^attempt, maxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialDelayMS)

	multiplier := p.BackoffMultiplier
	if multiplier == 0 {
		multiplier = 1
	}

	for range attempt {
		delay *= multiplier
	}

	if p.MaxDelayMS > 0 && delay > float64(p.MaxDelayMS) {
		delay = float64(p.MaxDelayMS)
	}

	return time.Duration(delay) * time.Millisecond
}

// MaxParallel returns the definition's concurrency cap, falling back to the
// default when unset.
func (w *WorkflowDefinition) MaxParallel() int {
	if w.MaxParallelSteps <= 0 {
		return DefaultMaxParallelSteps
	}

	return w.MaxParallelSteps
}

// StepByID finds a step definition by id.
func (w *WorkflowDefinition) StepByID(stepID string) (*StepDefinition, bool) {
	for _, step := range w.Steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return nil, false
}
