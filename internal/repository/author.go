package repository

import (
	"context"

	"small-library/internal/domain"
)

// AuthorRepository defines persistence operations for Author records.
type AuthorRepository interface {
	Init(ctx context.Context) error
	// Create inserts author and assigns author.ID.
	Create(ctx context.Context, author *domain.Author) error
	// Update overwrites the stored author with the same ID.
	Update(ctx context.Context, author *domain.Author) error
	GetByName(ctx context.Context, name string) (*domain.Author, error)
	// ListByNames returns the authors whose names are in names, in no particular order.
	ListByNames(ctx context.Context, names []string) ([]domain.Author, error)
	List(ctx context.Context) ([]domain.Author, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
