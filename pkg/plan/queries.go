package plan

import (
	"sort"

	"github.com/driftlab/conveyor/pkg/models"
)

// ReadySteps returns the ids of pending steps whose every dependency is
// completed, sorted by descending priority with ties broken by declaration
// order. Pure over (plan, executions).
func (p *ExecutionPlan) ReadySteps(executions map[string]*models.StepExecution) []string {
	ready := make([]string, 0)

	for _, step := range p.steps {
		exec, ok := executions[step.ID]
		if !ok || exec.Status != models.StepStatusPending {
			continue
		}

		if p.dependenciesCompleted(step.ID, executions) {
			ready = append(ready, step.ID)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		left, right := p.index[ready[i]], p.index[ready[j]]
		if left.Priority != right.Priority {
			return left.Priority > right.Priority
		}

		return p.order[ready[i]] < p.order[ready[j]]
	})

	return ready
}

// ShouldSkip reports whether a step must be skipped because one of its
// direct dependencies ended failed or skipped. This is how failure
// propagates forward through the graph.
func (p *ExecutionPlan) ShouldSkip(stepID string, executions map[string]*models.StepExecution) bool {
	for depID := range p.Dependencies[stepID] {
		exec, ok := executions[depID]
		if !ok {
			continue
		}

		if exec.Status == models.StepStatusFailed || exec.Status == models.StepStatusSkipped {
			return true
		}
	}

	return false
}

// DependenciesOf returns a step's direct dependencies in declaration order.
func (p *ExecutionPlan) DependenciesOf(stepID string) []string {
	deps := make([]string, 0, len(p.Dependencies[stepID]))
	for depID := range p.Dependencies[stepID] {
		deps = append(deps, depID)
	}

	sort.Slice(deps, func(i, j int) bool {
		return p.order[deps[i]] < p.order[deps[j]]
	})

	return deps
}

// Ancestors returns the transitive closure of a step's dependencies, in
// declaration order.
func (p *ExecutionPlan) Ancestors(stepID string) []string {
	return p.closure(stepID, p.Dependencies)
}

// Descendants returns the transitive closure of a step's dependents, in
// declaration order.
func (p *ExecutionPlan) Descendants(stepID string) []string {
	return p.closure(stepID, p.Dependents)
}

func (p *ExecutionPlan) closure(stepID string, edges map[string]map[string]struct{}) []string {
	visited := make(map[string]struct{})
	queue := []string{stepID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for next := range edges[current] {
			if _, seen := visited[next]; seen {
				continue
			}

			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	result := make([]string, 0, len(visited))
	for id := range visited {
		result = append(result, id)
	}

	sort.Slice(result, func(i, j int) bool {
		return p.order[result[i]] < p.order[result[j]]
	})

	return result
}

func (p *ExecutionPlan) dependenciesCompleted(stepID string, executions map[string]*models.StepExecution) bool {
	for depID := range p.Dependencies[stepID] {
		exec, ok := executions[depID]
		if !ok || exec.Status != models.StepStatusCompleted {
			return false
		}
	}

	return true
}
