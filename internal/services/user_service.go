package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"socialchat/internal/models"
	"socialchat/internal/storage"
)

// UserService defines user profile operations.
type UserService interface {
	GetUserProfile(ctx context.Context, userID uint) (*models.User, error)
}

// userService implements UserService.
type userService struct {
	userRepo storage.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo storage.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetUserProfile returns the user with sensitive fields cleared.
func (s *userService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user %d: %w", userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}
