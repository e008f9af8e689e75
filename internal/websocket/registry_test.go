package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-imagechat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records written frames; failWrites makes every write error.
type fakeConn struct {
	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
	closed     bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("write failed")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var ev OutboundEvent
		require.NoError(t, json.Unmarshal(f, &ev))
		out = append(out, ev.Type)
	}
	return out
}

func newTestRegistry() *Registry {
	return NewRegistry(Config{
		HeartbeatInterval: time.Hour,
		SweepInterval:     time.Hour,
		ConnectionMaxAge:  5 * time.Minute,
	}, logger.Noop{})
}

func TestRegistry_AdmitSendsConnected(t *testing.T) {
	r := newTestRegistry()
	conn := &fakeConn{}

	key, err := r.Admit(conn, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, 1, r.Size())
	assert.Equal(t, []string{"connected"}, conn.types(t))
}

func TestRegistry_AdmitRejectsMissingIdentity(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Admit(&fakeConn{}, uuid.Nil, uuid.New(), "token")
	assert.ErrorIs(t, err, ErrRejected)

	_, err = r.Admit(&fakeConn{}, uuid.New(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrRejected)

	assert.Zero(t, r.Size())
}

func TestRegistry_DuplicateKeyReplacesSilently(t *testing.T) {
	r := newTestRegistry()
	userId, sessionId := uuid.New(), uuid.New()

	first := &fakeConn{}
	key1, err := r.Admit(first, userId, sessionId, "token")
	require.NoError(t, err)

	second := &fakeConn{}
	key2, err := r.Admit(second, userId, sessionId, "token")
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Equal(t, 1, r.Size())
	// The replaced socket is orphaned, not closed.
	assert.False(t, first.closed)

	// Traffic lands on the replacement only.
	n := r.BroadcastToSession(sessionId, UserTypingEvent(userId, true), "")
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"connected"}, first.types(t))
	assert.Equal(t, []string{"connected", "user_typing"}, second.types(t))
}

func TestRegistry_ConcurrentReadmitAndBroadcast(t *testing.T) {
	r := newTestRegistry()
	userId, sessionId := uuid.New(), uuid.New()

	_, err := r.Admit(&fakeConn{}, userId, sessionId, "token")
	require.NoError(t, err)

	// Replacement admissions flip the old entry's state while broadcasts and
	// heartbeats read it from snapshots on other goroutines.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := r.Admit(&fakeConn{}, userId, sessionId, "token")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.BroadcastToSession(sessionId, PingEvent(), "")
			r.Heartbeat()
		}
	}()
	wg.Wait()

	assert.Equal(t, 1, r.Size())
}

func TestRegistry_BroadcastExcludesSender(t *testing.T) {
	r := newTestRegistry()
	sessionId := uuid.New()

	sender := &fakeConn{}
	senderKey, err := r.Admit(sender, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	peer := &fakeConn{}
	_, err = r.Admit(peer, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	other := &fakeConn{}
	_, err = r.Admit(other, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)

	n := r.BroadcastToSession(sessionId, UserTypingEvent(uuid.New(), true), senderKey)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"connected"}, sender.types(t))
	assert.Equal(t, []string{"connected", "user_typing"}, peer.types(t))
	assert.Equal(t, []string{"connected"}, other.types(t))
}

func TestRegistry_BroadcastPrunesDeadEntries(t *testing.T) {
	r := newTestRegistry()
	sessionId := uuid.New()

	dead := &fakeConn{}
	_, err := r.Admit(dead, uuid.New(), sessionId, "token")
	require.NoError(t, err)
	dead.failWrites = true

	live := &fakeConn{}
	_, err = r.Admit(live, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	n := r.BroadcastToSession(sessionId, LeftSessionEvent(sessionId), "")
	assert.Equal(t, 1, n)
	// Failed send evicts the entry in the same pass.
	assert.Equal(t, 1, r.Size())
}

func TestRegistry_BroadcastToUserSpansSessions(t *testing.T) {
	r := newTestRegistry()
	userId := uuid.New()

	a := &fakeConn{}
	_, err := r.Admit(a, userId, uuid.New(), "token")
	require.NoError(t, err)
	b := &fakeConn{}
	_, err = r.Admit(b, userId, uuid.New(), "token")
	require.NoError(t, err)
	stranger := &fakeConn{}
	_, err = r.Admit(stranger, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)

	n := r.BroadcastToUser(userId, SessionUpdateEvent("SESSION_CREATED", uuid.New(), nil))
	assert.Equal(t, 2, n)
	assert.Len(t, stranger.types(t), 1)
}

func TestRegistry_SweepStaleEvictsByAdmissionTime(t *testing.T) {
	r := newTestRegistry()

	conn := &fakeConn{}
	key, err := r.Admit(conn, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)

	// Not old enough yet.
	r.SweepStale(time.Now())
	assert.Equal(t, 1, r.Size())

	// Stale against a reference point past the max age.
	r.SweepStale(time.Now().Add(6 * time.Minute))
	assert.Zero(t, r.Size())
	assert.True(t, conn.closed)

	// Evicting an already-gone key is a no-op.
	r.Evict(key)
}

func TestRegistry_HeartbeatEvictsFailingConnections(t *testing.T) {
	r := newTestRegistry()

	healthy := &fakeConn{}
	_, err := r.Admit(healthy, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)

	broken := &fakeConn{}
	_, err = r.Admit(broken, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)
	broken.failWrites = true

	r.Heartbeat()

	assert.Equal(t, 1, r.Size())
	assert.Equal(t, []string{"connected", "ping"}, healthy.types(t))
}

func TestRegistry_SendToDeliversToOneEntry(t *testing.T) {
	r := newTestRegistry()
	sessionId := uuid.New()

	conn := &fakeConn{}
	key, err := r.Admit(conn, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	other := &fakeConn{}
	_, err = r.Admit(other, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	require.NoError(t, r.SendTo(key, JoinedSessionEvent(sessionId)))
	assert.Equal(t, []string{"connected", "joined_session"}, conn.types(t))
	assert.Equal(t, []string{"connected"}, other.types(t))

	// Unknown key is a silent no-op.
	require.NoError(t, r.SendTo(Key("absent"), PingEvent()))
}

func TestRegistry_ShutdownClosesEverything(t *testing.T) {
	r := newTestRegistry()
	r.Start()

	conn := &fakeConn{}
	_, err := r.Admit(conn, uuid.New(), uuid.New(), "token")
	require.NoError(t, err)

	r.Shutdown()
	assert.Zero(t, r.Size())
	assert.True(t, conn.closed)

	// Shutdown twice is safe.
	r.Shutdown()
}
