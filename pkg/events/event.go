package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "MESSAGE_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event codes emitted by the entity services.
const (
	TypeSessionCreated    = "SESSION_CREATED"
	TypeSessionDeleted    = "SESSION_DELETED"
	TypeMessageCreated    = "MESSAGE_CREATED"
	TypeMessageDeleted    = "MESSAGE_DELETED"
	TypeImageUnreferenced = "IMAGE_UNREFERENCED"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewImageUnreferencedEvent marks an image whose last reference was just
// released; the sweep worker consumes these.
func NewImageUnreferencedEvent(imageId uuid.UUID) BaseEvent {
	return BaseEvent{
		Type:       TypeImageUnreferenced,
		Data:       map[string]interface{}{"image_id": imageId.String()},
		OccurredAt: time.Now(),
	}
}

// NewSessionEvent builds a session-scoped event. Every session-scoped payload
// carries session_id and user_id so the notifier can route the fanout.
func NewSessionEvent(eventType string, sessionId, userId uuid.UUID, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"session_id": sessionId.String(),
		"user_id":    userId.String(),
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
