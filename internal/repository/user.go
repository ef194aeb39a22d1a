package repository

import (
	"context"

	"small-library/internal/domain"
)

// UserRepository defines persistence operations for User records.
type UserRepository interface {
	Init(ctx context.Context) error
	// Create inserts user and assigns user.ID.
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	DeleteAll(ctx context.Context) error
}
