package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newContractValidator()

// newContractValidator builds a validator that reports json field names, so
// violation paths match the wire contract rather than Go struct fields.
func newContractValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// FieldViolation points at one offending field in a contract envelope.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ContractViolationError reports a StepInput or StepOutput that does not
// conform to the step contract. These are programming errors in a step
// worker, never retried.
type ContractViolationError struct {
	StepID     string
	Envelope   string // "input" or "output"
	Violations []FieldViolation
}

func (e *ContractViolationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field+": "+v.Message)
	}

	return fmt.Sprintf("step %s: invalid %s envelope: %s", e.StepID, e.Envelope, strings.Join(fields, "; "))
}

// IsContractViolation reports whether err is a step-contract validation error.
func IsContractViolation(err error) bool {
	var cv *ContractViolationError

	return errors.As(err, &cv)
}

// ValidateStepInput checks the input envelope before it is handed to a worker.
func ValidateStepInput(in *StepInput) error {
	violations := structViolations(in)
	if len(violations) == 0 {
		return nil
	}

	return &ContractViolationError{StepID: in.StepID, Envelope: "input", Violations: violations}
}

// ValidateStepOutput checks the output envelope a worker returned, including
// the semantic rules the struct tags cannot express.
func ValidateStepOutput(stepID string, out *StepOutput) error {
	violations := structViolations(out)

	if out.Code != "" && !out.Code.Valid() {
		violations = append(violations, FieldViolation{
			Field:   "code",
			Message: fmt.Sprintf("unknown result code %q", out.Code),
		})
	}

	if !out.StartedAt.IsZero() && !out.CompletedAt.IsZero() && out.CompletedAt.Before(out.StartedAt) {
		violations = append(violations, FieldViolation{
			Field:   "completed_at",
			Message: "completion timestamp precedes start timestamp",
		})
	}

	if out.Code.IsFailure() && out.Error == nil {
		violations = append(violations, FieldViolation{
			Field:   "error",
			Message: fmt.Sprintf("result code %q requires an error object", out.Code),
		})
	}

	if out.RequiresApproval && len(out.ProposedChanges) == 0 {
		violations = append(violations, FieldViolation{
			Field:   "proposed_changes",
			Message: "requires_approval is set but no proposed changes are attached",
		})
	}

	if out.Usage != nil && out.Usage.TotalTokens != out.Usage.PromptTokens+out.Usage.CompletionTokens {
		violations = append(violations, FieldViolation{
			Field:   "usage.total_tokens",
			Message: "total does not equal prompt + completion tokens",
		})
	}

	if len(violations) == 0 {
		return nil
	}

	return &ContractViolationError{StepID: stepID, Envelope: "output", Violations: violations}
}

func structViolations(value any) []FieldViolation {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []FieldViolation{{Field: "", Message: err.Error()}}
	}

	violations := make([]FieldViolation, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		violations = append(violations, FieldViolation{
			Field:   fieldPath(fe.Namespace()),
			Message: "failed " + fe.Tag() + " validation",
		})
	}

	return violations
}

// fieldPath strips the envelope type prefix from a validator namespace,
// leaving the dotted path callers expect in reports.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}

	return namespace
}
