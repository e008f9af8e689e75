package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// SweepWorker reclaims unreferenced images. It reacts to unreferenced events
// for prompt cleanup and runs a periodic full sweep to catch anything the
// event path missed (crashes, missed decrements).
type SweepWorker struct {
	subscriber message.Subscriber
	images     IImageService
	interval   time.Duration
	logger     logger.ILogger
}

func NewSweepWorker(subscriber message.Subscriber, images IImageService, interval time.Duration, log logger.ILogger) *SweepWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SweepWorker{subscriber: subscriber, images: images, interval: interval, logger: log}
}

func (w *SweepWorker) Start(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, DomainEventsTopic)
	if err != nil {
		return err
	}

	go w.consume(ctx, messages)
	go w.periodic(ctx)

	w.logger.Info("SweepWorker", "Started", map[string]interface{}{"interval": w.interval.String()})
	return nil
}

func (w *SweepWorker) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		var env eventEnvelope
		if err := json.Unmarshal(msg.Payload, &env); err == nil && env.Type == events.TypeImageUnreferenced {
			if imageId, ok := parseId(env.Data, "image_id"); ok {
				if err := w.images.Reclaim(ctx, imageId); err != nil {
					w.logger.Warn("SweepWorker", "Reclaim failed", map[string]interface{}{
						"image_id": imageId,
						"error":    err.Error(),
					})
				}
			}
		}
		msg.Ack()
	}
}

func (w *SweepWorker) periodic(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := w.images.SweepUnreferenced(ctx, contract.ImageScope{})
			w.logger.Info("SweepWorker", "Sweep completed", map[string]interface{}{
				"deleted": result.Deleted,
				"failed":  result.Failed,
			})
		}
	}
}
