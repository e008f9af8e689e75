package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ImageTypeUploaded  = "uploaded"
	ImageTypeGenerated = "generated"
)

type Image struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	UserId    uuid.UUID
	Type      string
	Path      string
	ThumbPath string
	Mime      string
	Width     int
	Height    int
	Size      int64
	// RefCount equals the number of messages currently listing this image.
	// It is only ever mutated through IncrementRef/DecrementRef.
	RefCount  int
	CreatedAt time.Time
	UpdatedAt *time.Time
	// DeletedAt marks the image for the unreferenced sweep; the record stays
	// retrievable until the sweep physically removes it.
	DeletedAt *time.Time
}

func (i *Image) MarkedForDeletion() bool {
	return i.DeletedAt != nil
}
