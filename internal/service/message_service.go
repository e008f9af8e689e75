package service

import (
	"context"
	"errors"
	"time"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/memory"
	"ai-imagechat-be/pkg/events"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateMessageRequest) (*dto.MessageResponse, error)
	Show(ctx context.Context, userId, messageId uuid.UUID) (*dto.MessageResponse, error)
	Update(ctx context.Context, userId, messageId uuid.UUID, req *dto.UpdateMessageRequest) (*dto.MessageResponse, error)
	// Delete removes the message and releases one reference on each of its
	// images.
	Delete(ctx context.Context, userId, messageId uuid.UUID) error

	// AddImage attaches an image to an existing message, taking a reference.
	AddImage(ctx context.Context, userId, messageId, imageId uuid.UUID) (*dto.MessageResponse, error)
	// RemoveImage detaches an image, releasing its reference.
	RemoveImage(ctx context.Context, userId, messageId, imageId uuid.UUID) (*dto.MessageResponse, error)
}

type messageService struct {
	messageRepo contract.MessageRepository
	sessionRepo contract.SessionRepository
	imageRepo   contract.ImageRepository
	cache       *memory.SessionCache
	publisher   IPublisherService
	logger      logger.ILogger
}

func NewMessageService(
	messageRepo contract.MessageRepository,
	sessionRepo contract.SessionRepository,
	imageRepo contract.ImageRepository,
	cache *memory.SessionCache,
	publisher IPublisherService,
	log logger.ILogger,
) IMessageService {
	return &messageService{
		messageRepo: messageRepo,
		sessionRepo: sessionRepo,
		imageRepo:   imageRepo,
		cache:       cache,
		publisher:   publisher,
		logger:      log,
	}
}

// load resolves a message and authorizes the caller through the owning
// session.
func (s *messageService) load(ctx context.Context, userId, messageId uuid.UUID) (*entity.Message, *entity.Session, error) {
	message, err := s.messageRepo.FindById(ctx, messageId)
	if err != nil {
		return nil, nil, apperror.StoreUnavailable("find message", err)
	}
	if message == nil {
		return nil, nil, apperror.NotFound("message")
	}

	session, err := authorizeSession(ctx, s.sessionRepo, s.cache, userId, message.SessionId)
	if err != nil {
		return nil, nil, err
	}
	return message, session, nil
}

func (s *messageService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateMessageRequest) (*dto.MessageResponse, error) {
	session, err := authorizeSession(ctx, s.sessionRepo, s.cache, userId, req.SessionId)
	if err != nil {
		return nil, err
	}
	if session.IsDeleted() {
		return nil, apperror.Validation("session is deleted")
	}

	// Every referenced image must exist before any mutation happens, so a
	// bad id fails the request without half-applied refcounts.
	for _, imageId := range req.ImageIds {
		image, err := s.imageRepo.FindById(ctx, imageId)
		if err != nil {
			return nil, apperror.StoreUnavailable("find image", err)
		}
		if image == nil {
			return nil, apperror.Validation("image " + imageId.String() + " does not exist")
		}
	}

	if req.EditedOf != nil {
		original, err := s.messageRepo.FindById(ctx, *req.EditedOf)
		if err != nil {
			return nil, apperror.StoreUnavailable("find original message", err)
		}
		if original == nil || original.SessionId != req.SessionId {
			return nil, apperror.Validation("edited_of does not reference a message in this session")
		}
	}

	message := &entity.Message{
		Id:        uuid.New(),
		SessionId: req.SessionId,
		Role:      req.Role,
		Text:      req.Text,
		Params:    req.Params,
		ImageIds:  req.ImageIds,
		EditedOf:  req.EditedOf,
		CreatedAt: time.Now(),
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, apperror.StoreUnavailable("create message", err)
	}
	if err := s.sessionRepo.AddMessage(ctx, session, message.Id); err != nil {
		return nil, apperror.StoreUnavailable("register message", err)
	}
	s.cache.Save(session)

	// Reference bumps run after the message batch; an image deleted in the
	// window between the existence check and here is logged and skipped.
	for _, imageId := range req.ImageIds {
		if _, err := s.imageRepo.IncrementRef(ctx, imageId); err != nil {
			s.logger.Warn("MessageService", "Failed to take image reference", map[string]interface{}{
				"message_id": message.Id,
				"image_id":   imageId,
				"error":      err.Error(),
			})
		}
	}

	s.publisher.Publish(ctx, events.NewSessionEvent(events.TypeMessageCreated, message.SessionId, userId, map[string]interface{}{
		"message_id": message.Id.String(),
		"role":       message.Role,
	}))

	resp := dto.MessageFromEntity(message)
	return &resp, nil
}

func (s *messageService) Show(ctx context.Context, userId, messageId uuid.UUID) (*dto.MessageResponse, error) {
	message, _, err := s.load(ctx, userId, messageId)
	if err != nil {
		return nil, err
	}
	resp := dto.MessageFromEntity(message)
	return &resp, nil
}

func (s *messageService) Update(ctx context.Context, userId, messageId uuid.UUID, req *dto.UpdateMessageRequest) (*dto.MessageResponse, error) {
	if _, _, err := s.load(ctx, userId, messageId); err != nil {
		return nil, err
	}

	updated, err := s.messageRepo.Update(ctx, messageId, contract.MessageUpdate{
		Text:   req.Text,
		Params: req.Params,
	})
	if err != nil {
		return nil, apperror.StoreUnavailable("update message", err)
	}

	resp := dto.MessageFromEntity(updated)
	return &resp, nil
}

func (s *messageService) Delete(ctx context.Context, userId, messageId uuid.UUID) error {
	message, session, err := s.load(ctx, userId, messageId)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.RemoveMessage(ctx, session, messageId); err != nil {
		return apperror.StoreUnavailable("unregister message", err)
	}
	s.cache.Save(session)

	if err := s.messageRepo.Delete(ctx, messageId); err != nil {
		return apperror.StoreUnavailable("delete message", err)
	}

	for _, imageId := range message.ImageIds {
		s.releaseRef(ctx, messageId, imageId)
	}

	s.publisher.Publish(ctx, events.NewSessionEvent(events.TypeMessageDeleted, message.SessionId, userId, map[string]interface{}{
		"message_id": messageId.String(),
	}))
	return nil
}

func (s *messageService) AddImage(ctx context.Context, userId, messageId, imageId uuid.UUID) (*dto.MessageResponse, error) {
	message, _, err := s.load(ctx, userId, messageId)
	if err != nil {
		return nil, err
	}
	if message.HasImage(imageId) {
		return nil, apperror.Validation("image already attached to message")
	}

	if _, err := s.imageRepo.IncrementRef(ctx, imageId); err != nil {
		if errors.Is(err, contract.ErrImageAbsent) {
			return nil, apperror.NotFound("image")
		}
		return nil, apperror.StoreUnavailable("take image reference", err)
	}

	imageIds := append(append([]uuid.UUID{}, message.ImageIds...), imageId)
	updated, err := s.messageRepo.Update(ctx, messageId, contract.MessageUpdate{ImageIds: &imageIds})
	if err != nil {
		// Give the reference back so the bump above does not leak.
		if _, derr := s.imageRepo.DecrementRef(ctx, imageId); derr != nil {
			s.logger.Error("MessageService", "Failed to roll back image reference", map[string]interface{}{
				"image_id": imageId,
				"error":    derr.Error(),
			})
		}
		return nil, apperror.StoreUnavailable("attach image", err)
	}

	resp := dto.MessageFromEntity(updated)
	return &resp, nil
}

func (s *messageService) RemoveImage(ctx context.Context, userId, messageId, imageId uuid.UUID) (*dto.MessageResponse, error) {
	message, _, err := s.load(ctx, userId, messageId)
	if err != nil {
		return nil, err
	}
	if !message.HasImage(imageId) {
		return nil, apperror.Validation("image not attached to message")
	}

	imageIds := lo.Filter(message.ImageIds, func(id uuid.UUID, _ int) bool { return id != imageId })
	updated, err := s.messageRepo.Update(ctx, messageId, contract.MessageUpdate{ImageIds: &imageIds})
	if err != nil {
		return nil, apperror.StoreUnavailable("detach image", err)
	}

	s.releaseRef(ctx, messageId, imageId)

	resp := dto.MessageFromEntity(updated)
	return &resp, nil
}

// releaseRef decrements an image's refcount and raises the unreferenced
// event when the count reaches zero. Failures are logged, never propagated.
func (s *messageService) releaseRef(ctx context.Context, messageId, imageId uuid.UUID) {
	remaining, err := s.imageRepo.DecrementRef(ctx, imageId)
	if err != nil {
		s.logger.Warn("MessageService", "Failed to release image reference", map[string]interface{}{
			"message_id": messageId,
			"image_id":   imageId,
			"error":      err.Error(),
		})
		return
	}
	if remaining == 0 {
		s.publisher.Publish(ctx, events.NewImageUnreferencedEvent(imageId))
	}
}
