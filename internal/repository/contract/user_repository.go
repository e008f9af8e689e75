package contract

import (
	"context"
	"errors"
	"time"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

// ErrEmailExists is returned by Create when the email index already holds an id.
var ErrEmailExists = errors.New("email already exists")

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Username     *string
	Avatar       *string
	PasswordHash *string
	IsActive     *bool
}

type UserRepository interface {
	// Create writes the user hash, the email index and the users set in one
	// atomic batch.
	Create(ctx context.Context, user *entity.User) error
	// FindById returns (nil, nil) when the id is absent.
	FindById(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, id uuid.UUID, upd UserUpdate) (*entity.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
	// Delete removes the user hash, email index, recency index and set
	// membership in one atomic batch.
	Delete(ctx context.Context, user *entity.User) error

	// Recency-ordered session index (most recent first).
	SessionIds(ctx context.Context, userId uuid.UUID, limit, offset int) ([]uuid.UUID, error)
	AddSession(ctx context.Context, userId, sessionId uuid.UUID, at time.Time) error
	RemoveSession(ctx context.Context, userId, sessionId uuid.UUID) error
	SessionCount(ctx context.Context, userId uuid.UUID) (int64, error)
}
