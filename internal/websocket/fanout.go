package websocket

import (
	"github.com/google/uuid"
)

// BroadcastToSession delivers an event to every open connection watching the
// session, skipping excludeKey. Delivery is best-effort and fire-and-forget:
// one failed send never aborts the rest, and entries found not-open are
// pruned in the same pass.
func (r *Registry) BroadcastToSession(sessionId uuid.UUID, event OutboundEvent, excludeKey Key) int {
	delivered := 0
	for _, snap := range r.snapshot(func(c *connection) bool { return c.sessionId == sessionId }) {
		if snap.key == excludeKey {
			continue
		}
		if snap.conn.getState() != StateOpen {
			r.Evict(snap.key)
			continue
		}
		if err := snap.conn.send(event); err != nil {
			r.Evict(snap.key)
			continue
		}
		delivered++
	}

	r.logger.Info("Fanout", "Broadcast to session", map[string]interface{}{
		"session_id": sessionId,
		"delivered":  delivered,
		"type":       event.Type,
	})
	return delivered
}

// BroadcastToUser delivers an event to every open connection of a user.
func (r *Registry) BroadcastToUser(userId uuid.UUID, event OutboundEvent) int {
	delivered := 0
	for _, snap := range r.snapshot(func(c *connection) bool { return c.userId == userId }) {
		if snap.conn.getState() != StateOpen {
			r.Evict(snap.key)
			continue
		}
		if err := snap.conn.send(event); err != nil {
			r.Evict(snap.key)
			continue
		}
		delivered++
	}

	r.logger.Info("Fanout", "Broadcast to user", map[string]interface{}{
		"user_id":   userId,
		"delivered": delivered,
		"type":      event.Type,
	})
	return delivered
}
