package service

import (
	"context"
	"time"

	"ai-imagechat-be/internal/apperror"
	"ai-imagechat-be/internal/config"
	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/entity"
	"ai-imagechat-be/internal/pkg/logger"
	"ai-imagechat-be/internal/repository/contract"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
}

type authService struct {
	userRepo contract.UserRepository
	cfg      *config.Config
	logger   logger.ILogger
}

func NewAuthService(userRepo contract.UserRepository, cfg *config.Config, log logger.ILogger) IAuthService {
	return &authService{userRepo: userRepo, cfg: cfg, logger: log}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Id:           uuid.New(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if err == contract.ErrEmailExists {
			return nil, apperror.Validation("email already registered")
		}
		return nil, apperror.StoreUnavailable("create user", err)
	}

	s.logger.Info("AuthService", "User registered", map[string]interface{}{"user_id": user.Id})

	token, err := s.signToken(user)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{Token: token, User: dto.UserFromEntity(user)}, nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.StoreUnavailable("find user", err)
	}
	if user == nil {
		return nil, apperror.Forbidden("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperror.Forbidden("account disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.Forbidden("invalid credentials")
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.Id); err != nil {
		s.logger.Warn("AuthService", "Failed to stamp last login", map[string]interface{}{"error": err.Error()})
	}

	token, err := s.signToken(user)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{Token: token, User: dto.UserFromEntity(user)}, nil
}

func (s *authService) signToken(user *entity.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.Id.String(),
		"email":   user.Email,
		"exp":     time.Now().Add(time.Duration(s.cfg.Jwt.ExpiryHr) * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Jwt.Secret))
}
