package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"socialchat/internal/auth"
	"socialchat/internal/config"
	"socialchat/internal/models"
	"socialchat/internal/storage"
)

var (
	// ErrUserAlreadyExists is returned when registering a taken username/email.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when the account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService defines registration and login operations.
type AuthService interface {
	Register(ctx context.Context, username, fullName, email, password string) (*models.User, error)
	Login(ctx context.Context, usernameOrEmail, password string) (string, *models.User, error)
}

// authService implements AuthService.
type authService struct {
	userRepo storage.UserRepository
	authCfg  config.AuthConfig
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo storage.UserRepository, authCfg config.AuthConfig) AuthService {
	return &authService{userRepo: userRepo, authCfg: authCfg}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *authService) Register(ctx context.Context, username, fullName, email, password string) (*models.User, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checking username availability: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Username:     username,
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues a JWT.
func (s *authService) Login(ctx context.Context, usernameOrEmail, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.authCfg)
	if err != nil {
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}
	return token, user, nil
}
