package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSessionStarted is emitted when the upstream answers a request.
	EventTypeSessionStarted = "bounder.session.started"

	// EventTypeSessionEnded is emitted when an upstream session finishes.
	EventTypeSessionEnded = "bounder.session.ended"

	// EventTypeConsumerAttached is emitted when a downstream client joins.
	EventTypeConsumerAttached = "bounder.consumer.attached"

	// EventTypeConsumerDetached is emitted when a downstream client leaves.
	EventTypeConsumerDetached = "bounder.consumer.detached"
)

// StreamEvent is a transport-neutral payload describing a relay lifecycle change.
type StreamEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	Session       *SessionMeta  `json:"session,omitempty"`
	Consumer      *ConsumerMeta `json:"consumer,omitempty"`
}

// EventSource identifies the relay instance and the upstream it pulls from.
type EventSource struct {
	Listen   string `json:"listen,omitempty"`
	Upstream string `json:"upstream"`
}

// SessionMeta describes one upstream session.
type SessionMeta struct {
	HTTPStatus int    `json:"http_status,omitempty"`
	Boundary   string `json:"boundary,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ConsumerMeta describes one downstream consumer.
type ConsumerMeta struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// NewEvent returns an event of the given type with a fresh ID and timestamp.
func NewEvent(eventType string, src EventSource) *StreamEvent {
	return &StreamEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        src,
	}
}

// Key returns the partition key for the event: the consumer ID for consumer
// events, the upstream otherwise.
func (e *StreamEvent) Key() string {
	if e.Consumer != nil && e.Consumer.ID != "" {
		return e.Consumer.ID
	}
	return e.Source.Upstream
}
