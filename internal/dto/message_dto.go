package dto

import (
	"time"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

type CreateMessageRequest struct {
	SessionId uuid.UUID              `json:"session_id" validate:"required"`
	Role      string                 `json:"role" validate:"required,oneof=user assistant"`
	Text      string                 `json:"text"`
	Params    map[string]interface{} `json:"params"`
	ImageIds  []uuid.UUID            `json:"image_ids" validate:"unique"`
	EditedOf  *uuid.UUID             `json:"edited_of"`
}

type UpdateMessageRequest struct {
	Text   *string                `json:"text"`
	Params map[string]interface{} `json:"params"`
}

type MessageResponse struct {
	Id        uuid.UUID              `json:"id"`
	SessionId uuid.UUID              `json:"session_id"`
	Role      string                 `json:"role"`
	Text      string                 `json:"text"`
	Params    map[string]interface{} `json:"params"`
	ImageIds  []uuid.UUID            `json:"image_ids"`
	EditedOf  *uuid.UUID             `json:"edited_of,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt *time.Time             `json:"updated_at,omitempty"`
}

func MessageFromEntity(m *entity.Message) MessageResponse {
	return MessageResponse{
		Id:        m.Id,
		SessionId: m.SessionId,
		Role:      m.Role,
		Text:      m.Text,
		Params:    m.Params,
		ImageIds:  m.ImageIds,
		EditedOf:  m.EditedOf,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func MessagesFromEntities(messages []*entity.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageFromEntity(m))
	}
	return out
}
