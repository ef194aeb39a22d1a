package repository

import (
	"context"

	"small-library/internal/domain"
)

// BookRepository defines persistence operations for Book records.
type BookRepository interface {
	Init(ctx context.Context) error
	// Create inserts book and assigns book.ID. Genre order is preserved.
	Create(ctx context.Context, book *domain.Book) error
	List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
	Count(ctx context.Context) (int, error)
	// CountByAuthors returns, for each name in names, how many books carry
	// that exact author name. Names without books map to 0.
	CountByAuthors(ctx context.Context, names []string) (map[string]int, error)
	DeleteAll(ctx context.Context) error
}
