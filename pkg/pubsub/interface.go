package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/flenzi/company-service/pkg/uuidv7"
)

// Event represents a domain event published to the event bus.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewEvent creates an event with a fresh UUIDv7 id. The timestamp is the one
// embedded in the id.
func NewEvent(eventType, aggregateID string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	id := uuidv7.New()
	return &Event{
		ID:          id,
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     data,
		Timestamp:   uuidv7.Timestamp(id),
	}, nil
}

// UnmarshalPayload unmarshals the event payload into the given struct.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber subscribes to events from the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
