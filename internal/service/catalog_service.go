package service

import (
	"context"
	"errors"

	"small-library/internal/auth"
	"small-library/internal/domain"
	apperrors "small-library/internal/errors"
	"small-library/internal/repository"
)

// AddBookInput carries the addBook arguments.
type AddBookInput struct {
	Title     string
	Author    string
	Published int
	Genres    []string
}

// CatalogService coordinates author and book operations backed by repositories.
type CatalogService interface {
	BookCount(ctx context.Context) (int, error)
	AuthorCount(ctx context.Context) (int, error)
	AllAuthors(ctx context.Context) ([]domain.Author, error)
	AllBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
	// RecommendedBooks lists the books in the current user's favorite genre.
	RecommendedBooks(ctx context.Context) ([]domain.Book, error)
	// AuthorsByNames returns the stored authors keyed by name. Unknown
	// names are absent from the map.
	AuthorsByNames(ctx context.Context, names []string) (map[string]domain.Author, error)
	// BookCounts returns the number of books per author name.
	BookCounts(ctx context.Context, names []string) (map[string]int, error)
	AddBook(ctx context.Context, in AddBookInput) (*domain.Book, error)
	// EditAuthor sets the birth year of the named author. It returns nil
	// without error when no author has that name.
	EditAuthor(ctx context.Context, name string, born int) (*domain.Author, error)
}

type catalogService struct {
	authors repository.AuthorRepository
	books   repository.BookRepository
}

func NewCatalogService(repos repository.Repositories) CatalogService {
	return &catalogService{
		authors: repos.Authors,
		books:   repos.Books,
	}
}

func (s *catalogService) BookCount(ctx context.Context) (int, error) {
	n, err := s.books.Count(ctx)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

func (s *catalogService) AuthorCount(ctx context.Context) (int, error) {
	n, err := s.authors.Count(ctx)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

func (s *catalogService) AllAuthors(ctx context.Context) ([]domain.Author, error) {
	authors, err := s.authors.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return authors, nil
}

func (s *catalogService) AllBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	books, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return books, nil
}

func (s *catalogService) RecommendedBooks(ctx context.Context) ([]domain.Book, error) {
	user := auth.UserFrom(ctx)
	if user == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	genre := user.FavoriteGenre
	return s.AllBooks(ctx, domain.BookFilter{Genre: &genre})
}

func (s *catalogService) AuthorsByNames(ctx context.Context, names []string) (map[string]domain.Author, error) {
	authors, err := s.authors.ListByNames(ctx, names)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	byName := make(map[string]domain.Author, len(authors))
	for _, a := range authors {
		byName[a.Name] = a
	}
	return byName, nil
}

func (s *catalogService) BookCounts(ctx context.Context, names []string) (map[string]int, error) {
	counts, err := s.books.CountByAuthors(ctx, names)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return counts, nil
}

// AddBook creates the book, creating its author first when no author with
// that name exists. The two writes are not atomic: if the book is rejected
// the new author stays.
func (s *catalogService) AddBook(ctx context.Context, in AddBookInput) (*domain.Book, error) {
	if auth.UserFrom(ctx) == nil {
		return nil, apperrors.ErrNotAuthenticated
	}

	if _, err := s.authors.GetByName(ctx, in.Author); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Internal(err)
		}
		// a concurrent addBook may have created it since the lookup
		err := s.authors.Create(ctx, &domain.Author{Name: in.Author})
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return nil, rejected(err, in.Title)
		}
	}

	genres := in.Genres
	if genres == nil {
		genres = []string{}
	}
	book := &domain.Book{
		Title:     in.Title,
		Published: in.Published,
		Author:    in.Author,
		Genres:    genres,
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, rejected(err, in.Title)
	}
	return book, nil
}

func (s *catalogService) EditAuthor(ctx context.Context, name string, born int) (*domain.Author, error) {
	if auth.UserFrom(ctx) == nil {
		return nil, apperrors.ErrNotAuthenticated
	}

	author, err := s.authors.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal(err)
	}

	author.Born = &born
	if err := s.authors.Update(ctx, author); err != nil {
		return nil, rejected(err, name)
	}
	return author, nil
}
