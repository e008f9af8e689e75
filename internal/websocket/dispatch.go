package websocket

// HandleInbound dispatches one client frame for the connection at key.
// Malformed payloads produce an error reply to the sender only; unknown tags
// are logged and ignored.
func (r *Registry) HandleInbound(key Key, data []byte) {
	r.mu.RLock()
	c, ok := r.connections[key]
	r.mu.RUnlock()
	if !ok {
		return
	}

	in, err := ParseInbound(data)
	if err != nil {
		_ = c.send(ErrorEvent("Invalid message format"))
		return
	}

	switch in.Kind {
	case InboundPong:
		// Liveness ack, nothing to do.

	case InboundJoinSession:
		r.logger.Info("Registry", "Joined session", map[string]interface{}{
			"key":        string(key),
			"session_id": in.SessionId,
		})
		_ = r.SendTo(key, JoinedSessionEvent(in.SessionId))

	case InboundLeaveSession:
		r.logger.Info("Registry", "Left session", map[string]interface{}{
			"key":        string(key),
			"session_id": in.SessionId,
		})
		_ = r.SendTo(key, LeftSessionEvent(in.SessionId))

	case InboundTyping:
		r.BroadcastToSession(in.SessionId, UserTypingEvent(c.userId, in.IsTyping), key)

	case InboundUnrecognized:
		r.logger.Warn("Registry", "Unknown message type", map[string]interface{}{
			"key":  string(key),
			"type": in.RawType,
		})
	}
}
