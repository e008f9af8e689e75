package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/memory"
	"ai-imagechat-be/internal/storage"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// maxUploadSize caps a single uploaded file at 10 MiB.
const maxUploadSize = 10 << 20

type IImageService interface {
	Upload(ctx context.Context, userId, sessionId uuid.UUID, filename string, data []byte) (*dto.ImageResponse, error)
	// UploadBatch processes every item; a bad file is reported in its slot
	// and never fails the batch.
	UploadBatch(ctx context.Context, userId, sessionId uuid.UUID, files map[string][]byte, order []string) *dto.BatchUploadResponse
	// CreateGenerated records a model-produced image, starting at zero
	// references until a message claims it.
	CreateGenerated(ctx context.Context, userId, sessionId uuid.UUID, data []byte, params map[string]interface{}) (*dto.ImageResponse, error)
	Show(ctx context.Context, userId, imageId uuid.UUID) (*dto.ImageResponse, error)
	ListBySession(ctx context.Context, userId, sessionId uuid.UUID) ([]dto.ImageResponse, error)
	ListByUser(ctx context.Context, userId uuid.UUID, imageType string) ([]dto.ImageResponse, error)

	// Reclaim physically removes a single image that dropped to zero
	// references; a still-referenced or absent image is a no-op.
	Reclaim(ctx context.Context, imageId uuid.UUID) error
	// SweepUnreferenced reclaims every image in scope whose reference count
	// is zero at sweep time. A zero scope sweeps the whole image space.
	// Per-image failures are collected, not escalated.
	SweepUnreferenced(ctx context.Context, scope contract.ImageScope) *apperror.BatchResult
}

type imageService struct {
	imageRepo   contract.ImageRepository
	sessionRepo contract.SessionRepository
	cache       *memory.SessionCache
	blobs       storage.BlobStore
	logger      logger.ILogger
}

func NewImageService(
	imageRepo contract.ImageRepository,
	sessionRepo contract.SessionRepository,
	cache *memory.SessionCache,
	blobs storage.BlobStore,
	log logger.ILogger,
) IImageService {
	return &imageService{
		imageRepo:   imageRepo,
		sessionRepo: sessionRepo,
		cache:       cache,
		blobs:       blobs,
		logger:      log,
	}
}

func (s *imageService) store(ctx context.Context, userId, sessionId uuid.UUID, imageType string, data []byte) (*entity.Image, error) {
	if len(data) == 0 {
		return nil, apperror.Validation("empty file")
	}
	if len(data) > maxUploadSize {
		return nil, apperror.Validation("file exceeds 10MB limit")
	}

	mime := storage.SniffMime(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, apperror.Validation("unsupported content type " + mime)
	}

	id := uuid.New()
	ext := extensionFor(mime)
	path := fmt.Sprintf("%s/%s/%s%s", userId, sessionId, id, ext)

	url, err := s.blobs.Upload(ctx, data, path, mime)
	if err != nil {
		return nil, apperror.StoreUnavailable("upload blob", err)
	}

	width, height := 0, 0
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
	}

	img := &entity.Image{
		Id:        id,
		SessionId: sessionId,
		UserId:    userId,
		Type:      imageType,
		Path:      url,
		Mime:      mime,
		Width:     width,
		Height:    height,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}

	if err := s.imageRepo.Create(ctx, img); err != nil {
		if derr := s.blobs.Delete(ctx, path); derr != nil {
			s.logger.Warn("ImageService", "Failed to clean up blob after store error", map[string]interface{}{
				"path":  path,
				"error": derr.Error(),
			})
		}
		return nil, apperror.StoreUnavailable("create image", err)
	}
	return img, nil
}

func (s *imageService) Upload(ctx context.Context, userId, sessionId uuid.UUID, filename string, data []byte) (*dto.ImageResponse, error) {
	if _, err := authorizeSession(ctx, s.sessionRepo, s.cache, userId, sessionId); err != nil {
		return nil, err
	}

	img, err := s.store(ctx, userId, sessionId, entity.ImageTypeUploaded, data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ImageService", "Image uploaded", map[string]interface{}{
		"image_id":   img.Id,
		"session_id": sessionId,
		"filename":   filename,
		"size":       img.Size,
	})

	resp := dto.ImageFromEntity(img)
	return &resp, nil
}

func (s *imageService) UploadBatch(ctx context.Context, userId, sessionId uuid.UUID, files map[string][]byte, order []string) *dto.BatchUploadResponse {
	out := &dto.BatchUploadResponse{Results: make([]dto.UploadItemResult, 0, len(order))}

	if _, err := authorizeSession(ctx, s.sessionRepo, s.cache, userId, sessionId); err != nil {
		for _, name := range order {
			out.Results = append(out.Results, dto.UploadItemResult{Filename: name, Error: err.Error()})
		}
		return out
	}

	for _, name := range order {
		img, err := s.store(ctx, userId, sessionId, entity.ImageTypeUploaded, files[name])
		if err != nil {
			out.Results = append(out.Results, dto.UploadItemResult{Filename: name, Error: err.Error()})
			continue
		}
		resp := dto.ImageFromEntity(img)
		out.Results = append(out.Results, dto.UploadItemResult{Filename: name, Image: &resp})
	}
	return out
}

func (s *imageService) CreateGenerated(ctx context.Context, userId, sessionId uuid.UUID, data []byte, params map[string]interface{}) (*dto.ImageResponse, error) {
	if _, err := authorizeSession(ctx, s.sessionRepo, s.cache, userId, sessionId); err != nil {
		return nil, err
	}

	img, err := s.store(ctx, userId, sessionId, entity.ImageTypeGenerated, data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ImageService", "Generated image recorded", map[string]interface{}{
		"image_id":   img.Id,
		"session_id": sessionId,
		"params":     params,
	})

	resp := dto.ImageFromEntity(img)
	return &resp, nil
}

func (s *imageService) Show(ctx context.Context, userId, imageId uuid.UUID) (*dto.ImageResponse, error) {
	img, err := s.imageRepo.FindById(ctx, imageId)
	if err != nil {
		return nil, apperror.StoreUnavailable("find image", err)
	}
	if img == nil {
		return nil, apperror.NotFound("image")
	}
	if img.UserId != userId {
		return nil, apperror.Forbidden("image belongs to another user")
	}
	resp := dto.ImageFromEntity(img)
	return &resp, nil
}

func (s *imageService) ListBySession(ctx context.Context, userId, sessionId uuid.UUID) ([]dto.ImageResponse, error) {
	if _, err := authorizeSession(ctx, s.sessionRepo, s.cache, userId, sessionId); err != nil {
		return nil, err
	}
	return s.list(ctx, contract.ImageScope{SessionId: &sessionId})
}

func (s *imageService) ListByUser(ctx context.Context, userId uuid.UUID, imageType string) ([]dto.ImageResponse, error) {
	scope := contract.ImageScope{UserId: &userId}
	if imageType != "" {
		if imageType != entity.ImageTypeUploaded && imageType != entity.ImageTypeGenerated {
			return nil, apperror.Validation("unknown image type " + imageType)
		}
		scope.Type = &imageType
	}
	return s.list(ctx, scope)
}

func (s *imageService) list(ctx context.Context, scope contract.ImageScope) ([]dto.ImageResponse, error) {
	all, err := s.imageRepo.Enumerate(ctx)
	if err != nil {
		return nil, apperror.StoreUnavailable("enumerate images", err)
	}
	matched := lo.Filter(all, func(img *entity.Image, _ int) bool {
		return scope.Matches(img) && !img.MarkedForDeletion()
	})
	return dto.ImagesFromEntities(matched), nil
}

func (s *imageService) Reclaim(ctx context.Context, imageId uuid.UUID) error {
	img, err := s.imageRepo.FindById(ctx, imageId)
	if err != nil {
		return apperror.StoreUnavailable("find image", err)
	}
	if img == nil || img.RefCount > 0 {
		return nil
	}
	return s.reclaim(ctx, img)
}

func (s *imageService) reclaim(ctx context.Context, img *entity.Image) error {
	// Blob removal failures are logged and swallowed; the record is gone
	// either way and a later sweep of the store directory can pick strays up.
	if err := s.blobs.Delete(ctx, blobPath(img)); err != nil {
		s.logger.Warn("ImageService", "Failed to delete blob", map[string]interface{}{
			"image_id": img.Id,
			"error":    err.Error(),
		})
	}
	if err := s.imageRepo.Delete(ctx, img.Id); err != nil {
		return err
	}

	s.logger.Info("ImageService", "Unreferenced image reclaimed", map[string]interface{}{
		"image_id": img.Id,
		"type":     img.Type,
	})
	return nil
}

func (s *imageService) SweepUnreferenced(ctx context.Context, scope contract.ImageScope) *apperror.BatchResult {
	result := &apperror.BatchResult{}

	all, err := s.imageRepo.Enumerate(ctx)
	if err != nil {
		result.RecordFailure("enumerate", err)
		return result
	}

	candidates := lo.Filter(all, func(img *entity.Image, _ int) bool {
		return scope.Matches(img) && img.RefCount == 0
	})

	for _, img := range candidates {
		if err := s.reclaim(ctx, img); err != nil {
			result.RecordFailure(img.Id.String(), err)
			continue
		}
		result.Deleted++
	}
	return result
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// blobPath recovers the store-relative path from the public URL.
func blobPath(img *entity.Image) string {
	path := img.Path
	if idx := strings.Index(path, img.UserId.String()); idx >= 0 {
		return path[idx:]
	}
	return strings.TrimPrefix(path, "/")
}
