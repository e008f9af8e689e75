package dto

import (
	"time"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

type ImageResponse struct {
	Id        uuid.UUID  `json:"id"`
	SessionId uuid.UUID  `json:"session_id"`
	UserId    uuid.UUID  `json:"user_id"`
	Type      string     `json:"type"`
	Path      string     `json:"path"`
	ThumbPath string     `json:"thumb_path,omitempty"`
	Mime      string     `json:"mime"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Size      int64      `json:"size"`
	RefCount  int        `json:"ref_count"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func ImageFromEntity(i *entity.Image) ImageResponse {
	return ImageResponse{
		Id:        i.Id,
		SessionId: i.SessionId,
		UserId:    i.UserId,
		Type:      i.Type,
		Path:      i.Path,
		ThumbPath: i.ThumbPath,
		Mime:      i.Mime,
		Width:     i.Width,
		Height:    i.Height,
		Size:      i.Size,
		RefCount:  i.RefCount,
		CreatedAt: i.CreatedAt,
		DeletedAt: i.DeletedAt,
	}
}

func ImagesFromEntities(images []*entity.Image) []ImageResponse {
	out := make([]ImageResponse, 0, len(images))
	for _, i := range images {
		out = append(out, ImageFromEntity(i))
	}
	return out
}

// CreateGeneratedRequest records a model-produced image; Data is base64 in
// the JSON body.
type CreateGeneratedRequest struct {
	SessionId uuid.UUID              `json:"session_id" validate:"required"`
	Data      []byte                 `json:"data" validate:"required"`
	Params    map[string]interface{} `json:"params"`
}

// UploadItemResult reports one item of a batch upload; the batch as a whole
// never fails because one item did.
type UploadItemResult struct {
	Filename string         `json:"filename"`
	Image    *ImageResponse `json:"image,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type BatchUploadResponse struct {
	Results []UploadItemResult `json:"results"`
}

type SweepResponse struct {
	Result apperror.BatchResult `json:"result"`
}
