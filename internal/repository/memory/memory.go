// Package memory is a process-local backend. It keeps records in insertion
// order and is used by tests and by the "memory" database driver.
package memory

import (
	"context"
	"slices"
	"sync"

	"small-library/internal/domain"
	"small-library/internal/id"
	"small-library/internal/repository"
)

// Store holds all three collections behind one lock.
type Store struct {
	mu      sync.RWMutex
	authors []domain.Author
	books   []domain.Book
	users   []domain.User
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Authors: &AuthorRepository{s: s},
		Books:   &BookRepository{s: s},
		Users:   &UserRepository{s: s},
	}
}

type AuthorRepository struct {
	s *Store
}

func (r *AuthorRepository) Init(context.Context) error { return nil }

func (r *AuthorRepository) Create(_ context.Context, author *domain.Author) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.authors {
		if a.Name == author.Name {
			return repository.Duplicate("Author", "name", author.Name)
		}
	}
	author.ID = id.New()
	r.s.authors = append(r.s.authors, cloneAuthor(*author))
	return nil
}

func (r *AuthorRepository) Update(_ context.Context, author *domain.Author) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	idx := -1
	for i, a := range r.s.authors {
		if a.ID == author.ID {
			idx = i
		} else if a.Name == author.Name {
			return repository.Duplicate("Author", "name", author.Name)
		}
	}
	if idx < 0 {
		return repository.ErrNotFound
	}
	r.s.authors[idx] = cloneAuthor(*author)
	return nil
}

func (r *AuthorRepository) GetByName(_ context.Context, name string) (*domain.Author, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.authors {
		if a.Name == name {
			out := cloneAuthor(a)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AuthorRepository) ListByNames(_ context.Context, names []string) ([]domain.Author, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Author
	for _, a := range r.s.authors {
		if slices.Contains(names, a.Name) {
			out = append(out, cloneAuthor(a))
		}
	}
	return out, nil
}

func (r *AuthorRepository) List(context.Context) ([]domain.Author, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Author, len(r.s.authors))
	for i, a := range r.s.authors {
		out[i] = cloneAuthor(a)
	}
	return out, nil
}

func (r *AuthorRepository) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.authors), nil
}

func (r *AuthorRepository) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.authors = nil
	return nil
}

type BookRepository struct {
	s *Store
}

func (r *BookRepository) Init(context.Context) error { return nil }

func (r *BookRepository) Create(_ context.Context, book *domain.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, b := range r.s.books {
		if b.Title == book.Title {
			return repository.Duplicate("Book", "title", book.Title)
		}
	}
	book.ID = id.New()
	r.s.books = append(r.s.books, cloneBook(*book))
	return nil
}

func (r *BookRepository) List(_ context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Book{}
	for _, b := range r.s.books {
		if filter.Matches(b) {
			out = append(out, cloneBook(b))
		}
	}
	return out, nil
}

func (r *BookRepository) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.books), nil
}

func (r *BookRepository) CountByAuthors(_ context.Context, names []string) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int, len(names))
	for _, name := range names {
		counts[name] = 0
	}
	for _, b := range r.s.books {
		if _, ok := counts[b.Author]; ok {
			counts[b.Author]++
		}
	}
	return counts, nil
}

func (r *BookRepository) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.books = nil
	return nil
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Init(context.Context) error { return nil }

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == user.Username {
			return repository.Duplicate("User", "username", user.Username)
		}
	}
	user.ID = id.New()
	r.s.users = append(r.s.users, *user)
	return nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *UserRepository) GetByID(_ context.Context, userID string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == userID })
}

func (r *UserRepository) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) List(context.Context) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slices.Clone(r.s.users), nil
}

func (r *UserRepository) DeleteAll(context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users = nil
	return nil
}

func cloneAuthor(a domain.Author) domain.Author {
	if a.Born != nil {
		born := *a.Born
		a.Born = &born
	}
	return a
}

func cloneBook(b domain.Book) domain.Book {
	b.Genres = append([]string{}, b.Genres...)
	return b
}
