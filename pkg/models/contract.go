package models

import (
	"fmt"
	"time"
)

// ResultCode is the taxonomy a step worker returns to signal how the engine
// should treat its outcome.
type ResultCode string

const (
	ResultOK        ResultCode = "ok"
	ResultRetryable ResultCode = "retryable"
	ResultFatal     ResultCode = "fatal"
	ResultBlocked   ResultCode = "blocked"
	ResultSkipped   ResultCode = "skipped"
)

// retryByCode decides whether the same step may be dispatched again.
var retryByCode = map[ResultCode]bool{
	ResultOK:        false,
	ResultRetryable: true,
	ResultFatal:     false,
	ResultBlocked:   false,
	ResultSkipped:   false,
}

// continueByCode decides whether the run should keep going after the step
// settles. A worker-reported "skipped" means the worker chose not to act;
// the run continues and dependents still see the step as settled. This is
// distinct from the scheduler's skip propagation, which blocks dependents.
var continueByCode = map[ResultCode]bool{
	ResultOK:        true,
	ResultRetryable: false,
	ResultFatal:     false,
	ResultBlocked:   false,
	ResultSkipped:   true,
}

// Valid reports whether the code belongs to the taxonomy.
func (c ResultCode) Valid() bool {
	_, ok := retryByCode[c]

	return ok
}

// ShouldRetry reports whether the code allows another attempt at the same step.
func (c ResultCode) ShouldRetry() bool {
	return retryByCode[c]
}

// ShouldContinue reports whether the run may proceed past the step.
func (c ResultCode) ShouldContinue() bool {
	return continueByCode[c]
}

// IsFailure reports whether the code signals a failed outcome and therefore
// requires an accompanying error object.
func (c ResultCode) IsFailure() bool {
	return c == ResultRetryable || c == ResultFatal || c == ResultBlocked
}

// RepoContext carries the repository a step operates on, when applicable.
type RepoContext struct {
	Provider      string `json:"provider,omitempty"`
	Owner         string `json:"owner"          validate:"required"`
	Name          string `json:"name"           validate:"required"`
	DefaultBranch string `json:"default_branch,omitempty"`
	CloneURL      string `json:"clone_url,omitempty" validate:"omitempty,url"`
}

// PullRequestContext carries the pull request a step operates on, when applicable.
type PullRequestContext struct {
	Number  int    `json:"number"            validate:"gte=1"`
	HeadRef string `json:"head_ref"          validate:"required"`
	BaseRef string `json:"base_ref"          validate:"required"`
	URL     string `json:"url,omitempty"     validate:"omitempty,url"`
}

// StepInput is the envelope handed to a step worker for one attempt.
type StepInput struct {
	RunID         string              `json:"run_id"                   validate:"required"`
	WorkflowID    string              `json:"workflow_id"              validate:"required"`
	StepID        string              `json:"step_id"                  validate:"required"`
	TenantID      string              `json:"tenant_id,omitempty"`
	StepType      string              `json:"step_type"                validate:"required"`
	Repo          *RepoContext        `json:"repo,omitempty"           validate:"omitempty"`
	PullRequest   *PullRequestContext `json:"pull_request,omitempty"   validate:"omitempty"`
	RiskLevel     string              `json:"risk_level,omitempty"     validate:"omitempty,oneof=low medium high"`
	AllowWrites   bool                `json:"allow_writes,omitempty"`
	Attempt       int                 `json:"attempt"                  validate:"gte=0"`
	MaxAttempts   int                 `json:"max_attempts"             validate:"gte=1"`
	Configuration map[string]any      `json:"configuration,omitempty"`
}

// StepError describes a failed outcome. Required on any failure result code.
type StepError struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"           validate:"required"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *StepError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return e.Message
}

// ArtifactRef is a content-addressed pointer to an externally stored blob.
type ArtifactRef struct {
	URI         string `json:"uri"          validate:"required,uri"`
	ContentType string `json:"content_type" validate:"required"`
	SizeBytes   int64  `json:"size_bytes"   validate:"gte=0"`
	SHA256      string `json:"sha256"       validate:"required,len=64,hexadecimal"`
}

// TokenUsage accounts for model-token consumption during a step.
// TotalTokens must equal PromptTokens + CompletionTokens.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"     validate:"gte=0"`
	CompletionTokens int64 `json:"completion_tokens" validate:"gte=0"`
	TotalTokens      int64 `json:"total_tokens"      validate:"gte=0"`
}

// StepOutput is the envelope a step worker returns for one attempt.
type StepOutput struct {
	Code             ResultCode     `json:"code"                        validate:"required"`
	Summary          string         `json:"summary,omitempty"`
	Payload          map[string]any `json:"payload,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      time.Time      `json:"completed_at"`
	DurationMS       int64          `json:"duration_ms"                 validate:"gte=0"`
	ExternalWaitMS   int64          `json:"external_wait_ms,omitempty"  validate:"gte=0"`
	Usage            *TokenUsage    `json:"usage,omitempty"             validate:"omitempty"`
	CostUSD          float64        `json:"cost_usd,omitempty"          validate:"gte=0"`
	Error            *StepError     `json:"error,omitempty"             validate:"omitempty"`
	RequiresApproval bool           `json:"requires_approval,omitempty"`
	ProposedChanges  map[string]any `json:"proposed_changes,omitempty"`
	Artifacts        []ArtifactRef  `json:"artifacts,omitempty"         validate:"dive"`
}
