package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	Role      string
	Text      string
	// Params is the structured generation parameter bag, stored as an opaque
	// JSON string inside the message hash.
	Params map[string]interface{}
	// ImageIds keeps display order; duplicates are disallowed.
	ImageIds  []uuid.UUID
	EditedOf  *uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
}

func (m *Message) HasImage(imageId uuid.UUID) bool {
	for _, id := range m.ImageIds {
		if id == imageId {
			return true
		}
	}
	return false
}
