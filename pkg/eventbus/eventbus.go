// Package eventbus publishes run lifecycle events over a watermill pub/sub.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/driftlab/conveyor/pkg/events"
)

const eventTypeMetadataKey = "event_type"

// Publisher is the narrow interface the engine needs to emit events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Subscriber delivers lifecycle events to a handler.
type Subscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

type EventHandler func(ctx context.Context, eventType events.EventType, payload []byte) error

// EventBus combines both ends plus lifecycle management.
type EventBus interface {
	Publisher
	Subscriber
	Close() error
}

// WatermillEventBus adapts a watermill publisher/subscriber pair.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
	}
}

// Publish serializes the event to JSON and publishes it on the run events
// topic, tagging the event type in message metadata.
func (eb *WatermillEventBus) Publish(_ context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(eventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// Subscribe consumes the run events topic, acking every handled message and
// nacking on handler error.
func (eb *WatermillEventBus) Subscribe(ctx context.Context, handler EventHandler) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(eventTypeMetadataKey))

			if err := handler(ctx, eventType, msg.Payload); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}

var _ EventBus = (*WatermillEventBus)(nil)
