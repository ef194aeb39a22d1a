package repository

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by single-record lookups that match nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is matched by every unique-constraint violation.
	ErrDuplicate = errors.New("duplicate key")
)

// DuplicateError describes which unique field rejected a write.
type DuplicateError struct {
	Entity string
	Field  string
	Value  string
}

// Duplicate builds the error backends return on unique-constraint violations.
func Duplicate(entity, field, value string) error {
	return &DuplicateError{Entity: entity, Field: field, Value: value}
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s validation failed: %s: %q already exists", e.Entity, e.Field, e.Value)
}

// Is makes errors.Is(err, ErrDuplicate) true for every DuplicateError.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// Repositories bundles the collections a backend provides.
type Repositories struct {
	Authors AuthorRepository
	Books   BookRepository
	Users   UserRepository
}

// Init prepares every collection (tables, indexes).
func (r Repositories) Init(ctx context.Context) error {
	if err := r.Authors.Init(ctx); err != nil {
		return fmt.Errorf("init author repository: %w", err)
	}
	if err := r.Books.Init(ctx); err != nil {
		return fmt.Errorf("init book repository: %w", err)
	}
	if err := r.Users.Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}
	return nil
}
