package contract

import (
	"context"
	"time"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

// SessionUpdate is a partial update; nil fields are left untouched.
type SessionUpdate struct {
	Title     *string
	DeletedAt *time.Time
}

type SessionRepository interface {
	// Create writes the session hash, the owner's recency index entry and the
	// message list (with its head sentinel) in one atomic batch.
	Create(ctx context.Context, session *entity.Session) error
	// FindById returns (nil, nil) when the id is absent.
	FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	// FindByUserId resolves the owner's recency index and batch-reads the
	// session hashes, most recently touched first.
	FindByUserId(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.Session, error)
	Update(ctx context.Context, session *entity.Session, upd SessionUpdate) (*entity.Session, error)
	// HardDelete removes the session hash, its message list, its recency index
	// entry and every listed message record in one atomic batch.
	HardDelete(ctx context.Context, session *entity.Session) error

	// AddMessage appends to the message list, bumps messageCount, refreshes
	// updatedAt and the recency index — one atomic batch.
	AddMessage(ctx context.Context, session *entity.Session, messageId uuid.UUID) error
	// RemoveMessage removes the first occurrence only; ids are unique by
	// construction so this equals removing the message.
	RemoveMessage(ctx context.Context, session *entity.Session, messageId uuid.UUID) error
	MessageIds(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]uuid.UUID, error)
	// ListLen is the raw list length including the head sentinel.
	ListLen(ctx context.Context, sessionId uuid.UUID) (int64, error)
}
