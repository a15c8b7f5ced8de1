package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Header names carried on every domain event.
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)

// Domain event types published on the shop floor topic.
const (
	EventOrderCreated       = "order.created"
	EventOrderStageAdvanced = "order.stage_advanced"
	EventOrderCompleted     = "order.completed"
	EventWorkersSynced      = "workers.synced"
)

// Event is the envelope written as the message value.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent builds an envelope around data.
func NewEvent(eventType, key string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// PublishEvent encodes and publishes an event keyed by its aggregate.
func PublishEvent(ctx context.Context, p Publisher, eventType, key string, data any) error {
	event, err := NewEvent(eventType, key, data)
	if err != nil {
		return err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return p.Publish(ctx, []byte(key), value, map[string]string{
		HeaderEventType: event.Type,
		HeaderEventID:   event.ID,
	})
}

// EventType returns the type header, falling back to the envelope.
func (m Message) EventType() string {
	if t := m.Headers[HeaderEventType]; t != "" {
		return t
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(m.Value, &head); err != nil {
		return ""
	}
	return head.Type
}

// Decode unmarshals the envelope and its data into out.
func (m Message) Decode(out any) (Event, error) {
	var event Event
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if out != nil && len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, out); err != nil {
			return event, fmt.Errorf("decode %s payload: %w", event.Type, err)
		}
	}
	return event, nil
}
