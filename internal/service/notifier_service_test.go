package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/websocket"
	"ai-imagechat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *stubConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) eventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var ev websocket.OutboundEvent
		if err := json.Unmarshal(f, &ev); err == nil {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (c *stubConn) hasEventType(want string) bool {
	for _, typ := range c.eventTypes() {
		if typ == want {
			return true
		}
	}
	return false
}

func TestNotifier_SessionEventReachesWatchers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	registry := websocket.NewRegistry(websocket.Config{}, logger.Noop{})
	defer registry.Shutdown()

	notifier := NewNotifierService(bus, registry, logger.Noop{})
	require.NoError(t, notifier.Start(ctx))

	userId, sessionId := uuid.New(), uuid.New()
	watcher := &stubConn{}
	_, err := registry.Admit(watcher, userId, sessionId, "token")
	require.NoError(t, err)

	outsider := &stubConn{}
	_, err = registry.Admit(outsider, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)

	publisher := NewPublisherService(bus, nil, logger.Noop{})
	publisher.Publish(ctx, events.NewSessionEvent(events.TypeMessageCreated, sessionId, userId, map[string]interface{}{
		"message_id": uuid.New().String(),
	}))

	require.Eventually(t, func() bool {
		return watcher.hasEventType(events.TypeMessageCreated)
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, outsider.hasEventType(events.TypeMessageCreated))
}

func TestNotifier_MalformedEnvelopeIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	registry := websocket.NewRegistry(websocket.Config{}, logger.Noop{})
	defer registry.Shutdown()

	notifier := NewNotifierService(bus, registry, logger.Noop{})
	require.NoError(t, notifier.Start(ctx))

	conn := &stubConn{}
	_, err := registry.Admit(conn, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(DomainEventsTopic, message.NewMessage(watermill.NewUUID(), []byte("not json"))))

	// Give the consumer a beat; nothing besides the admission ack may arrive.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"connected"}, conn.eventTypes())
}

func TestPublisher_BusFailureIsSwallowed(t *testing.T) {
	publisher := NewPublisherService(failingBus{}, nil, logger.Noop{})
	// Must not panic or propagate.
	publisher.Publish(context.Background(), events.NewImageUnreferencedEvent(uuid.New()))
}

type failingBus struct{}

func (failingBus) Publish(string, ...*message.Message) error { return errors.New("bus down") }
func (failingBus) Close() error                              { return nil }
