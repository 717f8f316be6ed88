package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/driftlab/conveyor/pkg/channels/gochannel"
	"github.com/driftlab/conveyor/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	pub, sub := gochannel.CreateTestChannel(logger)

	bus := NewWatermillEventBus(pub, sub)
	defer func() {
		require.NoError(t, bus.Close())
	}()

	var (
		mu       sync.Mutex
		received []events.EventType
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := bus.Subscribe(ctx, func(_ context.Context, eventType events.EventType, payload []byte) error {
		var decoded map[string]any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return err
		}

		mu.Lock()
		received = append(received, eventType)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	started := events.WorkflowStarted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowStartedEvent, "wf-test", "run-abc1234"),
		TotalSteps:  3,
		MaxParallel: 2,
	}
	require.NoError(t, bus.Publish(ctx, started))

	completed := events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, "wf-test", "run-abc1234"),
		StepID:    "triage",
	}
	require.NoError(t, bus.Publish(ctx, completed))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.EventType{events.WorkflowStartedEvent, events.StepCompletedEvent}, received)
}
