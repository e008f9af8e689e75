package contract

import (
	"context"
	"errors"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

// ErrImageAbsent is returned by the refcount operations when the image hash
// does not exist; callers must check existence before associating.
var ErrImageAbsent = errors.New("image does not exist")

// ImageScope narrows enumeration; nil fields match everything.
type ImageScope struct {
	UserId    *uuid.UUID
	SessionId *uuid.UUID
	Type      *string
}

func (s ImageScope) Matches(img *entity.Image) bool {
	if s.UserId != nil && img.UserId != *s.UserId {
		return false
	}
	if s.SessionId != nil && img.SessionId != *s.SessionId {
		return false
	}
	if s.Type != nil && img.Type != *s.Type {
		return false
	}
	return true
}

// ImageUpdate is a partial update; nil fields are left untouched.
type ImageUpdate struct {
	Path      *string
	ThumbPath *string
	Width     *int
	Height    *int
	Size      *int64
}

type ImageRepository interface {
	Create(ctx context.Context, image *entity.Image) error
	// FindById returns (nil, nil) when the id is absent.
	FindById(ctx context.Context, id uuid.UUID) (*entity.Image, error)
	Update(ctx context.Context, id uuid.UUID, upd ImageUpdate) (*entity.Image, error)
	// Delete physically removes the image record. Deleting an absent id is a
	// no-op, which keeps the unreferenced sweep idempotent.
	Delete(ctx context.Context, id uuid.UUID) error

	// IncrementRef atomically bumps refCount, returning the new value.
	// Returns ErrImageAbsent when the hash does not exist.
	IncrementRef(ctx context.Context, id uuid.UUID) (int, error)
	// DecrementRef atomically decrements refCount clamped at 0 and stamps the
	// deletion mark when the result is 0. Returns the post-decrement value.
	DecrementRef(ctx context.Context, id uuid.UUID) (int, error)

	// Enumerate walks every image record; used by scoped listings and the
	// unreferenced sweep.
	Enumerate(ctx context.Context) ([]*entity.Image, error)
}
