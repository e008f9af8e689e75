package service

import (
	"context"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/memory"

	"github.com/google/uuid"
)

// authorizeSession resolves a session and checks ownership. A cache hit skips
// the store round-trip; a miss populates the cache for the realtime layer.
func authorizeSession(ctx context.Context, repo contract.SessionRepository, cache *memory.SessionCache, userId, sessionId uuid.UUID) (*entity.Session, error) {
	if cached, ok := cache.Get(sessionId); ok {
		if cached.UserId != userId {
			return nil, apperror.Forbidden("session belongs to another user")
		}
		return cached, nil
	}

	session, err := repo.FindById(ctx, sessionId)
	if err != nil {
		return nil, apperror.StoreUnavailable("find session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("session")
	}
	if session.UserId != userId {
		return nil, apperror.Forbidden("session belongs to another user")
	}

	cache.Save(session)
	return session, nil
}
