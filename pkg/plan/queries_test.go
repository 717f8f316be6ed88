package plan

import (
	"testing"

	"github.com/driftlab/conveyor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingExecutions(p *ExecutionPlan) map[string]*models.StepExecution {
	executions := make(map[string]*models.StepExecution, p.TotalSteps)
	for _, id := range p.StepIDs() {
		executions[id] = &models.StepExecution{StepID: id, Status: models.StepStatusPending}
	}

	return executions
}

func TestReadySteps_OnlyRootsAtStart(t *testing.T) {
	p, err := Build(buildWorkflow(step("a"), step("b", "a"), step("c", "a")))
	require.NoError(t, err)

	executions := pendingExecutions(p)

	assert.Equal(t, []string{"a"}, p.ReadySteps(executions))
}

func TestReadySteps_RequiresAllDependenciesCompleted(t *testing.T) {
	p, err := Build(buildWorkflow(step("a"), step("b"), step("c", "a", "b")))
	require.NoError(t, err)

	executions := pendingExecutions(p)
	executions["a"].Status = models.StepStatusCompleted
	executions["b"].Status = models.StepStatusRunning

	assert.NotContains(t, p.ReadySteps(executions), "c")

	executions["b"].Status = models.StepStatusCompleted

	assert.Equal(t, []string{"c"}, p.ReadySteps(executions))
}

func TestReadySteps_PriorityOrdering(t *testing.T) {
	low := step("low")
	low.Priority = 1
	high := step("high")
	high.Priority = 10
	unset := step("unset")

	p, err := Build(buildWorkflow(low, high, unset))
	require.NoError(t, err)

	executions := pendingExecutions(p)

	assert.Equal(t, []string{"high", "low", "unset"}, p.ReadySteps(executions))
}

func TestReadySteps_TiesBreakByDeclarationOrder(t *testing.T) {
	first := step("first")
	first.Priority = 5
	second := step("second")
	second.Priority = 5
	third := step("third")
	third.Priority = 5

	p, err := Build(buildWorkflow(first, second, third))
	require.NoError(t, err)

	executions := pendingExecutions(p)

	assert.Equal(t, []string{"first", "second", "third"}, p.ReadySteps(executions))
}

func TestShouldSkip(t *testing.T) {
	p, err := Build(buildWorkflow(step("a"), step("b", "a"), step("c", "b")))
	require.NoError(t, err)

	executions := pendingExecutions(p)

	assert.False(t, p.ShouldSkip("b", executions))

	executions["a"].Status = models.StepStatusFailed
	assert.True(t, p.ShouldSkip("b", executions))

	// c's direct dependency b is still pending; skip reaches it only once
	// the cascade marks b
	assert.False(t, p.ShouldSkip("c", executions))

	executions["b"].Status = models.StepStatusSkipped
	assert.True(t, p.ShouldSkip("c", executions))
}

func TestAncestorsAndDescendants(t *testing.T) {
	p, err := Build(buildWorkflow(
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
		step("e", "d"),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, p.Ancestors("e"))
	assert.Equal(t, []string{"a"}, p.Ancestors("b"))
	assert.Empty(t, p.Ancestors("a"))

	assert.Equal(t, []string{"b", "c", "d", "e"}, p.Descendants("a"))
	assert.Equal(t, []string{"e"}, p.Descendants("d"))
	assert.Empty(t, p.Descendants("e"))
}
