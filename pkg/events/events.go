// Package events defines the event types emitted over the run lifecycle.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single topic run lifecycle events are published on.
const Topic = "conveyor.run.events"

const (
	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowFinishedEvent  EventType = "workflow.finished"
	WorkflowCancelledEvent EventType = "workflow.cancelled"

	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
	StepFailedEvent    EventType = "step.failed"
	StepSkippedEvent   EventType = "step.skipped"
	StepRetryingEvent  EventType = "step.retrying"
)

// Event is implemented by every lifecycle event.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	RunID      string    `json:"run_id"`
}

// NewBaseEvent stamps an event envelope for the given run. Event ids carry
// their own prefix so consumers can tell them apart from run ids.
func NewBaseEvent(eventType EventType, workflowID, runID string) BaseEvent {
	return BaseEvent{
		ID:         "evt-" + uuid.New().String()[:8],
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		RunID:      runID,
	}
}

type WorkflowStarted struct {
	BaseEvent

	TotalSteps  int `json:"total_steps"`
	MaxParallel int `json:"max_parallel"`
}

func (w WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowFinished struct {
	BaseEvent

	Success        bool          `json:"success"`
	CompletedSteps int           `json:"completed_steps"`
	FailedSteps    int           `json:"failed_steps"`
	SkippedSteps   int           `json:"skipped_steps"`
	TotalRetries   int           `json:"total_retries"`
	Duration       time.Duration `json:"duration"`
}

func (w WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

type WorkflowCancelled struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (w WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}

type StepStarted struct {
	BaseEvent

	StepID  string `json:"step_id"`
	AgentID string `json:"agent_id"`
	Attempt int    `json:"attempt"`
}

func (s StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepCompleted struct {
	BaseEvent

	StepID   string        `json:"step_id"`
	Duration time.Duration `json:"duration"`
}

func (s StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	StepID  string `json:"step_id"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

func (s StepFailed) GetType() EventType {
	return StepFailedEvent
}

type StepSkipped struct {
	BaseEvent

	StepID string `json:"step_id"`
	Reason string `json:"reason,omitempty"`
}

func (s StepSkipped) GetType() EventType {
	return StepSkippedEvent
}

type StepRetrying struct {
	BaseEvent

	StepID  string        `json:"step_id"`
	Attempt int           `json:"attempt"`
	Backoff time.Duration `json:"backoff"`
	Error   string        `json:"error"`
}

func (s StepRetrying) GetType() EventType {
	return StepRetryingEvent
}
