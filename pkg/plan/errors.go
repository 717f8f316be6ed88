package plan

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateStepID is returned when two steps share an id.
var ErrDuplicateStepID = errors.New("duplicate step id")

// InvalidDependencyError is returned when a step depends on an id that does
// not exist in the workflow. Fatal to the run; nothing is dispatched.
type InvalidDependencyError struct {
	StepID       string
	DependencyID string
}

func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("step %q depends on unknown step %q", e.StepID, e.DependencyID)
}

// CyclicDependencyError is returned when the dependency graph contains a
// cycle. Fatal to the run; nothing is dispatched.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}
