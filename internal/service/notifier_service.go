package service

import (
	"context"
	"encoding/json"

	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/websocket"
	"ai-imagechat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type INotifierService interface {
	// Start consumes the domain event bus and fans events out to connected
	// clients until the context is cancelled.
	Start(ctx context.Context) error
}

// notifierService is the bridge between the event bus and the realtime
// registry. It is deliberately dumb: no persistence, no retries, a bad
// envelope is acked and dropped.
type notifierService struct {
	subscriber message.Subscriber
	registry   *websocket.Registry
	logger     logger.ILogger
}

func NewNotifierService(subscriber message.Subscriber, registry *websocket.Registry, log logger.ILogger) INotifierService {
	return &notifierService{subscriber: subscriber, registry: registry, logger: log}
}

func (s *notifierService) Start(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, DomainEventsTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.handle(msg)
			msg.Ack()
		}
	}()

	s.logger.Info("NotifierService", "Listening for domain events", nil)
	return nil
}

func (s *notifierService) handle(msg *message.Message) {
	var env eventEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		s.logger.Warn("NotifierService", "Dropping malformed event", map[string]interface{}{"error": err.Error()})
		return
	}

	switch env.Type {
	case events.TypeSessionCreated:
		if userId, ok := parseId(env.Data, "user_id"); ok {
			s.registry.BroadcastToUser(userId, websocket.SessionUpdateEvent(env.Type, mustId(env.Data, "session_id"), env.Data))
		}
	case events.TypeSessionDeleted, events.TypeMessageCreated, events.TypeMessageDeleted:
		if sessionId, ok := parseId(env.Data, "session_id"); ok {
			s.registry.BroadcastToSession(sessionId, websocket.SessionUpdateEvent(env.Type, sessionId, env.Data), "")
		}
	case events.TypeImageUnreferenced:
		// Storage housekeeping, nothing for clients.
	default:
		s.logger.Warn("NotifierService", "Unroutable event", map[string]interface{}{"type": env.Type})
	}
}

func parseId(data map[string]interface{}, field string) (uuid.UUID, bool) {
	raw, _ := data[field].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func mustId(data map[string]interface{}, field string) uuid.UUID {
	id, _ := parseId(data, field)
	return id
}
