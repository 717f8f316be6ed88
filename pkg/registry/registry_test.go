package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/driftlab/conveyor/pkg/models"
	"github.com/driftlab/conveyor/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWorker struct {
	config map[string]any
}

func (m *mockWorker) Execute(_ context.Context, input models.StepInput, _ models.ExecutionContext, _ *slog.Logger) (*models.StepOutput, error) {
	now := time.Now().UTC()

	return &models.StepOutput{
		Code:        models.ResultOK,
		StartedAt:   now,
		CompletedAt: now,
	}, nil
}

type mockFactory struct {
	id     string
	schema map[string]any
}

func (f *mockFactory) ID() string          { return f.id }
func (f *mockFactory) Name() string        { return "Mock" }
func (f *mockFactory) Description() string { return "Mock worker for registry tests." }

func (f *mockFactory) Schema() map[string]any { return f.schema }

func (f *mockFactory) Create(_ context.Context, config map[string]any) (protocol.StepWorker, error) {
	return &mockWorker{config: config}, nil
}

func testRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestRegistry_CreateWorker(t *testing.T) {
	r := testRegistry()
	r.Register(&mockFactory{id: "mock"})

	worker, err := r.CreateWorker(context.Background(), "mock", map[string]any{"key": "value"})
	require.NoError(t, err)
	assert.NotNil(t, worker)
}

func TestRegistry_UnknownAgentID(t *testing.T) {
	r := testRegistry()

	_, err := r.CreateWorker(context.Background(), "missing", nil)
	assert.ErrorContains(t, err, "'missing' not registered")
}

func TestRegistry_SchemaRejectsBadConfig(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
		"required": []string{"message"},
	}

	r := testRegistry()
	r.Register(&mockFactory{id: "strict", schema: schema})

	_, err := r.CreateWorker(context.Background(), "strict", map[string]any{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid configuration for agent 'strict'")

	_, err = r.CreateWorker(context.Background(), "strict", map[string]any{"message": "hi"})
	assert.NoError(t, err)
}

func TestRegistry_AvailableWorkersSorted(t *testing.T) {
	r := testRegistry()
	r.Register(&mockFactory{id: "transform"})
	r.Register(&mockFactory{id: "log"})

	assert.Equal(t, []string{"log", "transform"}, r.AvailableWorkers())
	assert.True(t, r.IsRegistered("log"))
	assert.False(t, r.IsRegistered("ghost"))
}
