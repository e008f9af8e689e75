package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ai-imagechat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Conn is the transport surface the registry needs from a websocket
// connection. The fiber websocket conn satisfies it; tests use fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// TextMessage mirrors the websocket text frame opcode so callers don't need
// the transport package for plain sends.
const TextMessage = 1

// ErrRejected is returned by Admit when user id or token is missing; the
// connection never reaches the open state.
var ErrRejected = errors.New("websocket admission rejected")

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// Key identifies a registry slot: one connection per (user, session) pair.
// A second admission with the same key replaces the first, silently orphaning
// the original socket.
type Key string

func KeyFor(userId, sessionId uuid.UUID) Key {
	return Key(userId.String() + "-" + sessionId.String())
}

type connection struct {
	conn        Conn
	userId      uuid.UUID
	sessionId   uuid.UUID
	connectedAt time.Time

	// state is read by broadcast and heartbeat goroutines while Admit and
	// Evict write it under the registry lock, so it must be atomic.
	state atomic.Int32

	// writeMu serializes frame writes; broadcasts, heartbeats and acks all
	// run on different goroutines.
	writeMu sync.Mutex
}

func (c *connection) setState(s State) { c.state.Store(int32(s)) }
func (c *connection) getState() State  { return State(c.state.Load()) }

func (c *connection) send(event OutboundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(TextMessage, data)
}

type Config struct {
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	// ConnectionMaxAge caps a connection's lifetime measured from admission,
	// not from last activity: long-lived idle-but-healthy connections are
	// evicted too.
	ConnectionMaxAge time.Duration
}

// Registry owns the live connection map. It is injected where needed and torn
// down with Shutdown; there is no process-wide singleton.
type Registry struct {
	mu          sync.RWMutex
	connections map[Key]*connection

	cfg    Config
	logger logger.ILogger

	done      chan struct{}
	closeOnce sync.Once
}

func NewRegistry(cfg Config, log logger.ILogger) *Registry {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	if cfg.ConnectionMaxAge <= 0 {
		cfg.ConnectionMaxAge = 5 * time.Minute
	}
	return &Registry{
		connections: make(map[Key]*connection),
		cfg:         cfg,
		logger:      log,
		done:        make(chan struct{}),
	}
}

// Start launches the heartbeat and idle-sweep tickers.
func (r *Registry) Start() {
	go r.heartbeatLoop()
	go r.sweepLoop()
}

// Shutdown stops the tickers and closes every connection.
func (r *Registry) Shutdown() {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, c := range r.connections {
		c.setState(StateClosed)
		_ = c.conn.Close()
		delete(r.connections, key)
	}
}

// Admit registers a connection keyed by (user, session). Both a user id and
// an auth token must be present or the attempt is rejected before the
// connection reaches the open state. Returns the registry key.
func (r *Registry) Admit(conn Conn, userId, sessionId uuid.UUID, token string) (Key, error) {
	if userId == uuid.Nil || token == "" {
		return "", ErrRejected
	}

	key := KeyFor(userId, sessionId)
	entry := &connection{
		conn:        conn,
		userId:      userId,
		sessionId:   sessionId,
		connectedAt: time.Now(),
	}
	entry.setState(StateOpen)

	r.mu.Lock()
	if prev, ok := r.connections[key]; ok {
		// Single slot per pair: the replaced socket is orphaned, not closed.
		prev.setState(StateClosed)
		r.logger.Info("Registry", "Connection replaced", map[string]interface{}{"key": string(key)})
	}
	r.connections[key] = entry
	r.mu.Unlock()

	r.logger.Info("Registry", "Connection admitted", map[string]interface{}{
		"user_id":    userId,
		"session_id": sessionId,
	})

	if err := entry.send(ConnectedEvent(sessionId, userId)); err != nil {
		r.logger.Warn("Registry", "Failed to send connected event", map[string]interface{}{"error": err.Error()})
	}
	return key, nil
}

// Evict removes a connection; invoked on read errors and client closes.
func (r *Registry) Evict(key Key) {
	r.mu.Lock()
	if c, ok := r.connections[key]; ok {
		c.setState(StateClosed)
		delete(r.connections, key)
	}
	r.mu.Unlock()
}

// Size reports the number of registered connections.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// SendTo delivers an event to a single registry entry.
func (r *Registry) SendTo(key Key, event OutboundEvent) error {
	r.mu.RLock()
	c, ok := r.connections[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.send(event)
}

func (r *Registry) heartbeatLoop() {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.Heartbeat()
		}
	}
}

// Heartbeat probes every open connection and evicts entries that are no
// longer open or fail the write.
func (r *Registry) Heartbeat() {
	ping := PingEvent()
	for _, snap := range r.snapshot(func(*connection) bool { return true }) {
		if snap.conn.getState() != StateOpen {
			r.Evict(snap.key)
			continue
		}
		if err := snap.conn.send(ping); err != nil {
			r.logger.Warn("Registry", "Heartbeat failed, evicting", map[string]interface{}{"key": string(snap.key)})
			r.Evict(snap.key)
		}
	}
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.SweepStale(time.Now())
		}
	}
}

// SweepStale force-closes and evicts every connection admitted longer than
// ConnectionMaxAge ago.
func (r *Registry) SweepStale(cutoffRef time.Time) {
	for _, snap := range r.snapshot(func(*connection) bool { return true }) {
		if cutoffRef.Sub(snap.conn.connectedAt) > r.cfg.ConnectionMaxAge {
			r.logger.Info("Registry", "Connection exceeded max age, closing", map[string]interface{}{"key": string(snap.key)})
			_ = snap.conn.conn.Close()
			r.Evict(snap.key)
		}
	}
}

type snapshotEntry struct {
	key  Key
	conn *connection
}

// snapshot copies the matching entries so sends happen outside the lock.
func (r *Registry) snapshot(match func(*connection) bool) []snapshotEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]snapshotEntry, 0, len(r.connections))
	for key, c := range r.connections {
		if match(c) {
			entries = append(entries, snapshotEntry{key: key, conn: c})
		}
	}
	return entries
}
