package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOutput() *StepOutput {
	now := time.Now()

	return &StepOutput{
		Code:        ResultOK,
		Summary:     "done",
		StartedAt:   now.Add(-time.Second),
		CompletedAt: now,
		DurationMS:  1000,
	}
}

func TestValidateStepInput(t *testing.T) {
	tests := []struct {
		name      string
		input     *StepInput
		wantField string
	}{
		{
			name: "valid input",
			input: &StepInput{
				RunID:       "run-1",
				WorkflowID:  "wf-1",
				StepID:      "analyze",
				StepType:    "code_analysis",
				MaxAttempts: 1,
			},
		},
		{
			name: "missing run id",
			input: &StepInput{
				WorkflowID:  "wf-1",
				StepID:      "analyze",
				StepType:    "code_analysis",
				MaxAttempts: 1,
			},
			wantField: "run_id",
		},
		{
			name: "invalid risk level",
			input: &StepInput{
				RunID:       "run-1",
				WorkflowID:  "wf-1",
				StepID:      "analyze",
				StepType:    "code_analysis",
				RiskLevel:   "extreme",
				MaxAttempts: 1,
			},
			wantField: "risk_level",
		},
		{
			name: "pull request missing refs",
			input: &StepInput{
				RunID:       "run-1",
				WorkflowID:  "wf-1",
				StepID:      "rebase",
				StepType:    "conflict_resolution",
				PullRequest: &PullRequestContext{Number: 12},
				MaxAttempts: 1,
			},
			wantField: "head_ref",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStepInput(tt.input)

			if tt.wantField == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, IsContractViolation(err))

			violation := err.(*ContractViolationError)
			assert.Equal(t, "input", violation.Envelope)

			found := false
			for _, v := range violation.Violations {
				if containsField(v.Field, tt.wantField) {
					found = true
				}
			}
			assert.True(t, found, "expected a violation on %q, got %v", tt.wantField, violation.Violations)
		})
	}
}

func TestValidateStepOutput_Valid(t *testing.T) {
	err := ValidateStepOutput("analyze", validOutput())
	assert.NoError(t, err)
}

func TestValidateStepOutput_SemanticChecks(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*StepOutput)
		wantField string
	}{
		{
			name: "unknown result code",
			mutate: func(out *StepOutput) {
				out.Code = "success"
			},
			wantField: "code",
		},
		{
			name: "completion before start",
			mutate: func(out *StepOutput) {
				out.CompletedAt = out.StartedAt.Add(-time.Minute)
			},
			wantField: "completed_at",
		},
		{
			name: "fatal without error",
			mutate: func(out *StepOutput) {
				out.Code = ResultFatal
			},
			wantField: "error",
		},
		{
			name: "blocked without error",
			mutate: func(out *StepOutput) {
				out.Code = ResultBlocked
			},
			wantField: "error",
		},
		{
			name: "approval without proposed changes",
			mutate: func(out *StepOutput) {
				out.RequiresApproval = true
			},
			wantField: "proposed_changes",
		},
		{
			name: "token total mismatch",
			mutate: func(out *StepOutput) {
				out.Usage = &TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 200}
			},
			wantField: "usage.total_tokens",
		},
		{
			name: "artifact without hash",
			mutate: func(out *StepOutput) {
				out.Artifacts = []ArtifactRef{{URI: "s3://bucket/patch.diff", ContentType: "text/x-diff", SizeBytes: 120}}
			},
			wantField: "sha256",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := validOutput()
			tt.mutate(out)

			err := ValidateStepOutput("analyze", out)
			require.Error(t, err)

			violation := err.(*ContractViolationError)
			assert.Equal(t, "analyze", violation.StepID)
			assert.Equal(t, "output", violation.Envelope)

			found := false
			for _, v := range violation.Violations {
				if containsField(v.Field, tt.wantField) {
					found = true
				}
			}
			assert.True(t, found, "expected a violation on %q, got %v", tt.wantField, violation.Violations)
		})
	}
}

func TestValidateStepOutput_FatalWithErrorIsValid(t *testing.T) {
	out := validOutput()
	out.Code = ResultFatal
	out.Error = &StepError{Code: "compile_error", Message: "build failed"}

	assert.NoError(t, ValidateStepOutput("build", out))
}

func containsField(path, field string) bool {
	if path == field {
		return true
	}

	// validator namespaces use Go field names; semantic checks use json paths
	return len(path) >= len(field) && path[len(path)-len(field):] == field
}
