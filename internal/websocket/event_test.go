package websocket

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	sessionId := uuid.New()

	tests := []struct {
		name     string
		payload  string
		wantKind InboundKind
		wantErr  bool
	}{
		{
			name:     "pong",
			payload:  `{"type":"pong"}`,
			wantKind: InboundPong,
		},
		{
			name:     "join session",
			payload:  fmt.Sprintf(`{"type":"join_session","payload":{"sessionId":"%s"}}`, sessionId),
			wantKind: InboundJoinSession,
		},
		{
			name:     "leave session",
			payload:  fmt.Sprintf(`{"type":"leave_session","payload":{"sessionId":"%s"}}`, sessionId),
			wantKind: InboundLeaveSession,
		},
		{
			name:     "typing",
			payload:  fmt.Sprintf(`{"type":"typing","payload":{"sessionId":"%s","isTyping":true}}`, sessionId),
			wantKind: InboundTyping,
		},
		{
			name:     "unknown tag is not an error",
			payload:  `{"type":"subscribe_weather"}`,
			wantKind: InboundUnrecognized,
		},
		{
			name:    "malformed json",
			payload: `{"type":`,
			wantErr: true,
		},
		{
			name:    "typing without session id",
			payload: `{"type":"typing","payload":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseInbound([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, in.Kind)
			if in.Kind == InboundTyping {
				assert.Equal(t, sessionId, in.SessionId)
				assert.True(t, in.IsTyping)
			}
		})
	}
}

func TestParseInbound_KeepsRawType(t *testing.T) {
	in, err := ParseInbound([]byte(`{"type":"subscribe_weather"}`))
	require.NoError(t, err)
	assert.Equal(t, InboundUnrecognized, in.Kind)
	assert.Equal(t, "subscribe_weather", in.RawType)
}

func TestHandleInbound_TypingFansOutToPeers(t *testing.T) {
	r := newTestRegistry()
	sessionId := uuid.New()

	sender := &fakeConn{}
	senderKey, err := r.Admit(sender, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	peer := &fakeConn{}
	_, err = r.Admit(peer, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"type":"typing","payload":{"sessionId":"%s","isTyping":true}}`, sessionId)
	r.HandleInbound(senderKey, []byte(payload))

	assert.Equal(t, []string{"connected"}, sender.types(t))
	assert.Equal(t, []string{"connected", "user_typing"}, peer.types(t))
}

func TestHandleInbound_MalformedRepliesToSenderOnly(t *testing.T) {
	r := newTestRegistry()
	sessionId := uuid.New()

	sender := &fakeConn{}
	senderKey, err := r.Admit(sender, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	peer := &fakeConn{}
	_, err = r.Admit(peer, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	r.HandleInbound(senderKey, []byte(`not json`))

	assert.Equal(t, []string{"connected", "error"}, sender.types(t))
	assert.Equal(t, []string{"connected"}, peer.types(t))
}

func TestHandleInbound_JoinAck(t *testing.T) {
	r := newTestRegistry()
	sessionId := uuid.New()

	conn := &fakeConn{}
	key, err := r.Admit(conn, uuid.New(), sessionId, "token")
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"type":"join_session","payload":{"sessionId":"%s"}}`, sessionId)
	r.HandleInbound(key, []byte(payload))
	assert.Equal(t, []string{"connected", "joined_session"}, conn.types(t))
}
