package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/pkg/events"
	pktNats "ai-imagechat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainEventsTopic is the in-process bus topic every entity mutation event
// goes through.
const DomainEventsTopic = "domain_events"

// eventEnvelope is the serialized form events travel in on the bus.
type eventEnvelope struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type IPublisherService interface {
	// Publish is fire-and-forget; a bus failure is logged, never propagated
	// into the mutation that raised the event.
	Publish(ctx context.Context, event events.Event)
}

type publisherService struct {
	bus     message.Publisher
	natsPub *pktNats.Publisher
	logger  logger.ILogger
}

// NewPublisherService fans domain events onto the in-process watermill bus
// and mirrors them to NATS when a publisher is connected.
func NewPublisherService(bus message.Publisher, natsPub *pktNats.Publisher, log logger.ILogger) IPublisherService {
	return &publisherService{bus: bus, natsPub: natsPub, logger: log}
}

func (s *publisherService) Publish(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(eventEnvelope{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		s.logger.Error("PublisherService", "Failed to marshal event", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := s.bus.Publish(DomainEventsTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		s.logger.Error("PublisherService", "Failed to publish to bus", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}

	if s.natsPub != nil {
		if err := s.natsPub.Publish(ctx, event); err != nil {
			s.logger.Warn("PublisherService", "Failed to mirror event to NATS", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}
}
