package service

import (
	"context"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/repository/memory"
	"ai-imagechat-be/pkg/events"

	"github.com/google/uuid"
)

type IUserService interface {
	Profile(ctx context.Context, userId uuid.UUID) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userId uuid.UUID, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	Stats(ctx context.Context, userId uuid.UUID) (*entity.UserStats, error)
	// DeleteAccount hard-deletes every session the user owns, then the user
	// record itself. Session deletions that fail are logged and skipped; the
	// user record is removed regardless.
	DeleteAccount(ctx context.Context, userId uuid.UUID) error
}

type userService struct {
	userRepo    contract.UserRepository
	sessionRepo contract.SessionRepository
	cache       *memory.SessionCache
	publisher   IPublisherService
	logger      logger.ILogger
}

func NewUserService(
	userRepo contract.UserRepository,
	sessionRepo contract.SessionRepository,
	cache *memory.SessionCache,
	publisher IPublisherService,
	log logger.ILogger,
) IUserService {
	return &userService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cache:       cache,
		publisher:   publisher,
		logger:      log,
	}
}

func (s *userService) find(ctx context.Context, userId uuid.UUID) (*entity.User, error) {
	user, err := s.userRepo.FindById(ctx, userId)
	if err != nil {
		return nil, apperror.StoreUnavailable("find user", err)
	}
	if user == nil {
		return nil, apperror.NotFound("user")
	}
	return user, nil
}

func (s *userService) Profile(ctx context.Context, userId uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.find(ctx, userId)
	if err != nil {
		return nil, err
	}
	resp := dto.UserFromEntity(user)
	return &resp, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userId uuid.UUID, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	if _, err := s.find(ctx, userId); err != nil {
		return nil, err
	}

	updated, err := s.userRepo.Update(ctx, userId, contract.UserUpdate{
		Username: req.Username,
		Avatar:   req.Avatar,
	})
	if err != nil {
		return nil, apperror.StoreUnavailable("update user", err)
	}

	resp := dto.UserFromEntity(updated)
	return &resp, nil
}

func (s *userService) Stats(ctx context.Context, userId uuid.UUID) (*entity.UserStats, error) {
	user, err := s.find(ctx, userId)
	if err != nil {
		return nil, err
	}

	count, err := s.userRepo.SessionCount(ctx, userId)
	if err != nil {
		return nil, apperror.StoreUnavailable("count sessions", err)
	}

	return &entity.UserStats{
		SessionCount: count,
		CreatedAt:    user.CreatedAt,
		LastLoginAt:  user.LastLoginAt,
	}, nil
}

func (s *userService) DeleteAccount(ctx context.Context, userId uuid.UUID) error {
	user, err := s.find(ctx, userId)
	if err != nil {
		return err
	}

	sessions, err := s.sessionRepo.FindByUserId(ctx, userId, 0, 0)
	if err != nil {
		return apperror.StoreUnavailable("list sessions", err)
	}

	for _, session := range sessions {
		if err := s.sessionRepo.HardDelete(ctx, session); err != nil {
			s.logger.Warn("UserService", "Failed to delete session during account removal", map[string]interface{}{
				"session_id": session.Id,
				"error":      err.Error(),
			})
			continue
		}
		s.cache.Delete(session.Id)
		s.publisher.Publish(ctx, events.NewSessionEvent(events.TypeSessionDeleted, session.Id, userId, map[string]interface{}{
			"hard": true,
		}))
	}

	if err := s.userRepo.Delete(ctx, user); err != nil {
		return apperror.StoreUnavailable("delete user", err)
	}

	s.logger.Info("UserService", "Account deleted", map[string]interface{}{
		"user_id":  userId,
		"sessions": len(sessions),
	})
	return nil
}
