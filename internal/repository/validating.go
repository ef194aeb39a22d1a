package repository

import (
	"context"

	"small-library/internal/domain"
	"small-library/internal/validation"
)

// WithValidation wraps every write of repos with struct validation, so all
// backends reject the same records the same way.
func WithValidation(repos Repositories, v *validation.Validator) Repositories {
	return Repositories{
		Authors: validatingAuthors{AuthorRepository: repos.Authors, v: v},
		Books:   validatingBooks{BookRepository: repos.Books, v: v},
		Users:   validatingUsers{UserRepository: repos.Users, v: v},
	}
}

type validatingAuthors struct {
	AuthorRepository
	v *validation.Validator
}

func (r validatingAuthors) Create(ctx context.Context, author *domain.Author) error {
	if err := r.v.Validate(author); err != nil {
		return err
	}
	return r.AuthorRepository.Create(ctx, author)
}

func (r validatingAuthors) Update(ctx context.Context, author *domain.Author) error {
	if err := r.v.Validate(author); err != nil {
		return err
	}
	return r.AuthorRepository.Update(ctx, author)
}

type validatingBooks struct {
	BookRepository
	v *validation.Validator
}

func (r validatingBooks) Create(ctx context.Context, book *domain.Book) error {
	if err := r.v.Validate(book); err != nil {
		return err
	}
	return r.BookRepository.Create(ctx, book)
}

type validatingUsers struct {
	UserRepository
	v *validation.Validator
}

func (r validatingUsers) Create(ctx context.Context, user *domain.User) error {
	if err := r.v.Validate(user); err != nil {
		return err
	}
	return r.UserRepository.Create(ctx, user)
}
