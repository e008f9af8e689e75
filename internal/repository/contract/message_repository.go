package contract

import (
	"context"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

// MessageUpdate is a partial update; nil fields are left untouched.
type MessageUpdate struct {
	Text     *string
	Params   map[string]interface{}
	ImageIds *[]uuid.UUID
	EditedOf *uuid.UUID
}

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	// FindById returns (nil, nil) when the id is absent.
	FindById(ctx context.Context, id uuid.UUID) (*entity.Message, error)
	// FindByIds batch-reads message hashes, skipping absent ids.
	FindByIds(ctx context.Context, ids []uuid.UUID) ([]*entity.Message, error)
	Update(ctx context.Context, id uuid.UUID, upd MessageUpdate) (*entity.Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
