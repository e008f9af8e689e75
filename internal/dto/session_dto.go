package dto

import (
	"time"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type UpdateSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type SessionResponse struct {
	Id           uuid.UUID  `json:"id"`
	UserId       uuid.UUID  `json:"user_id"`
	Title        string     `json:"title"`
	MessageCount int        `json:"message_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func SessionFromEntity(s *entity.Session) SessionResponse {
	return SessionResponse{
		Id:           s.Id,
		UserId:       s.UserId,
		Title:        s.Title,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		DeletedAt:    s.DeletedAt,
	}
}

func SessionsFromEntities(sessions []*entity.Session) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionFromEntity(s))
	}
	return out
}
