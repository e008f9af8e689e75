package memory

import (
	"time"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionCache keeps recently touched sessions in process memory so the
// realtime layer can authorize join_session without a store round-trip.
type SessionCache struct {
	cache *cache.Cache
}

func NewSessionCache() *SessionCache {
	// Default expiration 1 hour, purge sweep every 10 minutes.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionCache{cache: c}
}

func (r *SessionCache) Save(session *entity.Session) {
	r.cache.Set(session.Id.String(), session, cache.DefaultExpiration)
}

func (r *SessionCache) Get(sessionId uuid.UUID) (*entity.Session, bool) {
	if x, found := r.cache.Get(sessionId.String()); found {
		return x.(*entity.Session), true
	}
	return nil, false
}

func (r *SessionCache) Delete(sessionId uuid.UUID) {
	r.cache.Delete(sessionId.String())
}
