package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboundEvent is the wire shape for every server-to-client message.
type OutboundEvent struct {
	Type      string `json:"type"`
	SessionId string `json:"sessionId,omitempty"`
	UserId    string `json:"userId,omitempty"`
	IsTyping  *bool  `json:"isTyping,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// Data carries entity payloads for session-scoped notifications.
	Data map[string]interface{} `json:"data,omitempty"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func ConnectedEvent(sessionId, userId uuid.UUID) OutboundEvent {
	return OutboundEvent{
		Type:      "connected",
		SessionId: sessionId.String(),
		UserId:    userId.String(),
		Timestamp: now(),
	}
}

func PingEvent() OutboundEvent {
	return OutboundEvent{Type: "ping", Timestamp: now()}
}

func JoinedSessionEvent(sessionId uuid.UUID) OutboundEvent {
	return OutboundEvent{Type: "joined_session", SessionId: sessionId.String(), Timestamp: now()}
}

func LeftSessionEvent(sessionId uuid.UUID) OutboundEvent {
	return OutboundEvent{Type: "left_session", SessionId: sessionId.String(), Timestamp: now()}
}

func UserTypingEvent(userId uuid.UUID, isTyping bool) OutboundEvent {
	return OutboundEvent{
		Type:      "user_typing",
		UserId:    userId.String(),
		IsTyping:  &isTyping,
		Timestamp: now(),
	}
}

func ErrorEvent(message string) OutboundEvent {
	return OutboundEvent{Type: "error", Message: message}
}

// SessionUpdateEvent wraps a domain event for clients watching a session.
func SessionUpdateEvent(eventType string, sessionId uuid.UUID, data map[string]interface{}) OutboundEvent {
	return OutboundEvent{
		Type:      eventType,
		SessionId: sessionId.String(),
		Timestamp: now(),
		Data:      data,
	}
}

// InboundKind enumerates the closed set of client message tags.
type InboundKind int

const (
	InboundPong InboundKind = iota
	InboundJoinSession
	InboundLeaveSession
	InboundTyping
	InboundUnrecognized
)

// Inbound is the parsed form of a client message: a tagged variant over the
// closed tag set with an explicit unrecognized arm.
type Inbound struct {
	Kind InboundKind
	// RawType holds the original tag for logging unrecognized messages.
	RawType   string
	SessionId uuid.UUID
	IsTyping  bool
}

type inboundEnvelope struct {
	Type    string `json:"type"`
	Payload struct {
		SessionId string `json:"sessionId"`
		IsTyping  bool   `json:"isTyping"`
	} `json:"payload"`
}

// ParseInbound decodes a client frame. A malformed frame returns an error
// (the caller replies with an error event to the sender only); an unknown tag
// is not an error, it maps to the unrecognized arm.
func ParseInbound(data []byte) (Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, err
	}

	in := Inbound{RawType: env.Type}
	switch env.Type {
	case "pong":
		in.Kind = InboundPong
	case "join_session", "leave_session", "typing":
		sessionId, err := uuid.Parse(env.Payload.SessionId)
		if err != nil {
			return Inbound{}, err
		}
		in.SessionId = sessionId
		in.IsTyping = env.Payload.IsTyping
		switch env.Type {
		case "join_session":
			in.Kind = InboundJoinSession
		case "leave_session":
			in.Kind = InboundLeaveSession
		default:
			in.Kind = InboundTyping
		}
	default:
		in.Kind = InboundUnrecognized
	}
	return in, nil
}
