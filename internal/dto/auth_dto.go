package dto

import (
	"time"

	"ai-imagechat-be/internal/entity"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse never carries the credentials digest.
type UserResponse struct {
	Id          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Avatar      string     `json:"avatar,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

func UserFromEntity(u *entity.User) UserResponse {
	return UserResponse{
		Id:          u.Id,
		Email:       u.Email,
		Username:    u.Username,
		Avatar:      u.Avatar,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
		IsActive:    u.IsActive,
	}
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=64"`
	Avatar   *string `json:"avatar"`
}
