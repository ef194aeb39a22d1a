package service

import (
	"context"
	"errors"

	"small-library/internal/auth"
	"small-library/internal/domain"
	apperrors "small-library/internal/errors"
	"small-library/internal/repository"
)

// UserService describes user lifecycle operations.
type UserService interface {
	CreateUser(ctx context.Context, username, favoriteGenre string) (*domain.User, error)
	// Login returns a signed token for username. Unknown users and wrong
	// passwords fail with the same error.
	Login(ctx context.Context, username, password string) (string, error)
	// GetByID returns nil without error when no user has that id.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type userService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	credentials *auth.Credentials
}

func NewUserService(users repository.UserRepository, tokens *auth.TokenService, credentials *auth.Credentials) UserService {
	return &userService{
		users:       users,
		tokens:      tokens,
		credentials: credentials,
	}
}

func (s *userService) CreateUser(ctx context.Context, username, favoriteGenre string) (*domain.User, error) {
	user := &domain.User{
		Username:      username,
		FavoriteGenre: favoriteGenre,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, rejected(err, username)
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", apperrors.Internal(err)
	}

	// the password is checked even for unknown users so both failures cost the same
	if !s.credentials.Check(password) || user == nil {
		return "", apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return token, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}
