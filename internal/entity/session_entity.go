package entity

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	// MessageCount is maintained incrementally alongside the message list,
	// never recomputed from the list length.
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
}

func (s *Session) IsDeleted() bool {
	return s.DeletedAt != nil
}

type SessionStats struct {
	MessageCount int       `json:"message_count"`
	TotalEntries int64     `json:"total_entries"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}
