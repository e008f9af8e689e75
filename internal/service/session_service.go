package service

import (
	"context"
	"time"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/memory"
	"ai-imagechat-be/pkg/events"

	"github.com/google/uuid"
)

type ISessionService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetAll(ctx context.Context, userId uuid.UUID, limit, offset int) ([]dto.SessionResponse, error)
	Show(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionResponse, error)
	Rename(ctx context.Context, userId, sessionId uuid.UUID, req *dto.UpdateSessionRequest) (*dto.SessionResponse, error)
	SoftDelete(ctx context.Context, userId, sessionId uuid.UUID) error
	// HardDelete removes the session together with every message record it
	// lists. Image refcounts are left untouched; orphans are reclaimed by the
	// unreferenced sweep.
	HardDelete(ctx context.Context, userId, sessionId uuid.UUID) error
	GetMessages(ctx context.Context, userId, sessionId uuid.UUID, limit, offset int) ([]dto.MessageResponse, error)
	Stats(ctx context.Context, userId, sessionId uuid.UUID) (*entity.SessionStats, error)
}

type sessionService struct {
	sessionRepo contract.SessionRepository
	messageRepo contract.MessageRepository
	cache       *memory.SessionCache
	publisher   IPublisherService
	logger      logger.ILogger
}

func NewSessionService(
	sessionRepo contract.SessionRepository,
	messageRepo contract.MessageRepository,
	cache *memory.SessionCache,
	publisher IPublisherService,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		cache:       cache,
		publisher:   publisher,
		logger:      log,
	}
}

func (s *sessionService) authorize(ctx context.Context, userId, sessionId uuid.UUID) (*entity.Session, error) {
	return authorizeSession(ctx, s.sessionRepo, s.cache, userId, sessionId)
}

func (s *sessionService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	title := req.Title
	if title == "" {
		title = "New Chat"
	}

	session := &entity.Session{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     title,
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, apperror.StoreUnavailable("create session", err)
	}

	s.cache.Save(session)
	s.publisher.Publish(ctx, events.NewSessionEvent(events.TypeSessionCreated, session.Id, userId, map[string]interface{}{
		"title": session.Title,
	}))

	s.logger.Info("SessionService", "Session created", map[string]interface{}{
		"session_id": session.Id,
		"user_id":    userId,
	})

	resp := dto.SessionFromEntity(session)
	return &resp, nil
}

func (s *sessionService) GetAll(ctx context.Context, userId uuid.UUID, limit, offset int) ([]dto.SessionResponse, error) {
	sessions, err := s.sessionRepo.FindByUserId(ctx, userId, limit, offset)
	if err != nil {
		return nil, apperror.StoreUnavailable("list sessions", err)
	}

	// Soft-deleted sessions stay in the recency index but are hidden from
	// listings.
	visible := make([]*entity.Session, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.IsDeleted() {
			visible = append(visible, sess)
		}
	}
	return dto.SessionsFromEntities(visible), nil
}

func (s *sessionService) Show(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.authorize(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}
	resp := dto.SessionFromEntity(session)
	return &resp, nil
}

func (s *sessionService) Rename(ctx context.Context, userId, sessionId uuid.UUID, req *dto.UpdateSessionRequest) (*dto.SessionResponse, error) {
	session, err := s.authorize(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.Update(ctx, session, contract.SessionUpdate{Title: &req.Title})
	if err != nil {
		return nil, apperror.StoreUnavailable("rename session", err)
	}

	s.cache.Save(updated)
	resp := dto.SessionFromEntity(updated)
	return &resp, nil
}

func (s *sessionService) SoftDelete(ctx context.Context, userId, sessionId uuid.UUID) error {
	session, err := s.authorize(ctx, userId, sessionId)
	if err != nil {
		return err
	}

	now := time.Now()
	updated, err := s.sessionRepo.Update(ctx, session, contract.SessionUpdate{DeletedAt: &now})
	if err != nil {
		return apperror.StoreUnavailable("soft delete session", err)
	}

	s.cache.Save(updated)
	s.publisher.Publish(ctx, events.NewSessionEvent(events.TypeSessionDeleted, sessionId, userId, map[string]interface{}{
		"hard": false,
	}))
	return nil
}

func (s *sessionService) HardDelete(ctx context.Context, userId, sessionId uuid.UUID) error {
	session, err := s.authorize(ctx, userId, sessionId)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.HardDelete(ctx, session); err != nil {
		return apperror.StoreUnavailable("hard delete session", err)
	}

	s.cache.Delete(sessionId)
	s.publisher.Publish(ctx, events.NewSessionEvent(events.TypeSessionDeleted, sessionId, userId, map[string]interface{}{
		"hard": true,
	}))

	s.logger.Info("SessionService", "Session hard deleted", map[string]interface{}{
		"session_id": sessionId,
		"user_id":    userId,
	})
	return nil
}

func (s *sessionService) GetMessages(ctx context.Context, userId, sessionId uuid.UUID, limit, offset int) ([]dto.MessageResponse, error) {
	if _, err := s.authorize(ctx, userId, sessionId); err != nil {
		return nil, err
	}

	ids, err := s.sessionRepo.MessageIds(ctx, sessionId, limit, offset)
	if err != nil {
		return nil, apperror.StoreUnavailable("list message ids", err)
	}
	if len(ids) == 0 {
		return []dto.MessageResponse{}, nil
	}

	messages, err := s.messageRepo.FindByIds(ctx, ids)
	if err != nil {
		return nil, apperror.StoreUnavailable("load messages", err)
	}
	return dto.MessagesFromEntities(messages), nil
}

func (s *sessionService) Stats(ctx context.Context, userId, sessionId uuid.UUID) (*entity.SessionStats, error) {
	session, err := s.authorize(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}

	listLen, err := s.sessionRepo.ListLen(ctx, sessionId)
	if err != nil {
		return nil, apperror.StoreUnavailable("session list length", err)
	}

	return &entity.SessionStats{
		MessageCount: session.MessageCount,
		TotalEntries: listLen,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}, nil
}
