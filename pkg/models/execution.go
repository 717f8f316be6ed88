package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// StepStatus is the execution state of a step within one run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Terminal reports whether the status can no longer change.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// StepExecution tracks the live state of one step during a run. It is owned
// by the executor; workers only ever see read-only copies.
type StepExecution struct {
	StepID      string     `json:"step_id"`
	Status      StepStatus `json:"status"`
	Retries     int        `json:"retries"`
	Output      any        `json:"output,omitempty"`
	Err         error      `json:"-"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExecutionContext is the shared accumulator for one workflow run. The
// engine only appends to StepOutputs; entries are never removed or replaced
// once written.
type ExecutionContext struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	StepOutputs map[string]any `json:"step_outputs,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Snapshot returns a copy of the context with its own StepOutputs map, safe
// to read from another goroutine while the original keeps accumulating
// outputs. Input and Metadata are shared; neither is written after the run
// starts.
func (c *ExecutionContext) Snapshot() *ExecutionContext {
	view := *c
	view.StepOutputs = maps.Clone(c.StepOutputs)

	return &view
}

// NewExecutionContext creates a run context with a fresh correlation id.
func NewExecutionContext(workflowID string, input map[string]any) *ExecutionContext {
	return &ExecutionContext{
		ID:          GenerateRunID(),
		WorkflowID:  workflowID,
		StepOutputs: make(map[string]any),
		Input:       input,
		Metadata:    make(map[string]any),
	}
}

// GenerateRunID creates a unique run identifier.
func GenerateRunID() string {
	return "run-" + uuid.New().String()[:8]
}
