// Package plan builds and queries the immutable execution plan derived from
// a workflow definition: the validated dependency graph, its inverse, and a
// topological leveling.
package plan

import (
	"fmt"

	"github.com/driftlab/conveyor/pkg/models"
)

// ExecutionPlan is derived once per run from a WorkflowDefinition and never
// mutated afterwards. Levels are an analysis artifact (critical path,
// diagnostics), not an execution barrier.
type ExecutionPlan struct {
	TotalSteps   int
	Dependencies map[string]map[string]struct{} // step id -> ids it depends on
	Dependents   map[string]map[string]struct{} // step id -> ids depending on it
	Levels       [][]string

	steps []*models.StepDefinition
	index map[string]*models.StepDefinition
	order map[string]int // declaration order, the priority tie-break
}

// Build validates the workflow's dependency graph and derives the plan.
// Cycle detection runs before leveling: a cyclic graph would never finish
// the leveling extraction.
func Build(workflow *models.WorkflowDefinition) (*ExecutionPlan, error) {
	p := &ExecutionPlan{
		TotalSteps:   len(workflow.Steps),
		Dependencies: make(map[string]map[string]struct{}, len(workflow.Steps)),
		Dependents:   make(map[string]map[string]struct{}, len(workflow.Steps)),
		steps:        workflow.Steps,
		index:        make(map[string]*models.StepDefinition, len(workflow.Steps)),
		order:        make(map[string]int, len(workflow.Steps)),
	}

	for i, step := range workflow.Steps {
		if _, exists := p.index[step.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStepID, step.ID)
		}

		p.index[step.ID] = step
		p.order[step.ID] = i
		p.Dependencies[step.ID] = make(map[string]struct{}, len(step.DependsOn))
		p.Dependents[step.ID] = make(map[string]struct{})
	}

	for _, step := range workflow.Steps {
		for _, depID := range step.DependsOn {
			if _, exists := p.index[depID]; !exists {
				return nil, &InvalidDependencyError{StepID: step.ID, DependencyID: depID}
			}

			p.Dependencies[step.ID][depID] = struct{}{}
			p.Dependents[depID][step.ID] = struct{}{}
		}
	}

	if cycle := p.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	p.computeLevels()

	return p, nil
}

// Step returns the definition for a step id.
func (p *ExecutionPlan) Step(stepID string) (*models.StepDefinition, bool) {
	step, ok := p.index[stepID]

	return step, ok
}

// StepIDs returns every step id in declaration order.
func (p *ExecutionPlan) StepIDs() []string {
	ids := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		ids = append(ids, step.ID)
	}

	return ids
}

// findCycle runs a depth-first traversal tracking the in-progress set; any
// revisit of an in-progress node is a cycle. Returns the cycle path or nil.
func (p *ExecutionPlan) findCycle() []string {
	const (
		white = iota // unvisited
		grey         // in progress
		black        // finished
	)

	colors := make(map[string]int, len(p.steps))
	stack := make([]string, 0, len(p.steps))

	var visit func(id string) []string

	visit = func(id string) []string {
		colors[id] = grey
		stack = append(stack, id)

		for depID := range p.Dependencies[id] {
			switch colors[depID] {
			case grey:
				// close the loop for the error message
				start := 0
				for i, onStack := range stack {
					if onStack == depID {
						start = i

						break
					}
				}

				return append(append([]string{}, stack[start:]...), depID)
			case white:
				if cycle := visit(depID); cycle != nil {
					return cycle
				}
			}
		}

		colors[id] = black
		stack = stack[:len(stack)-1]

		return nil
	}

	for _, step := range p.steps {
		if colors[step.ID] == white {
			if cycle := visit(step.ID); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// computeLevels repeatedly extracts the not-yet-leveled steps whose
// dependencies are all already leveled, assigning them the next level.
func (p *ExecutionPlan) computeLevels() {
	leveled := make(map[string]struct{}, len(p.steps))

	for len(leveled) < len(p.steps) {
		level := make([]string, 0)

		for _, step := range p.steps {
			if _, done := leveled[step.ID]; done {
				continue
			}

			ready := true

			for depID := range p.Dependencies[step.ID] {
				if _, done := leveled[depID]; !done {
					ready = false

					break
				}
			}

			if ready {
				level = append(level, step.ID)
			}
		}

		for _, id := range level {
			leveled[id] = struct{}{}
		}

		p.Levels = append(p.Levels, level)
	}
}
