package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-imagechat-be/internal/config"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/pkg/events"
	pktNats "ai-imagechat-be/pkg/nats"
)

// Audit tail: consumes the mirrored event stream from NATS and writes each
// event to the audit log. Runs as its own process so the API server does not
// carry the durable consumer.
func main() {
	cfg := config.Load()

	auditLogger := logger.NewIsolatedLogger("logs/audit.log")
	defer auditLogger.Sync()

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("Unable to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Subscribe("events.>", "eventlog", func(_ context.Context, event events.Event) error {
		auditLogger.Info("EventLog", event.EventType(), event.Payload())
		return nil
	})
	if err != nil {
		log.Fatalf("Unable to subscribe: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
}
