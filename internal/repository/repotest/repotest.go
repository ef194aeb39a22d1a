// Package repotest is a conformance suite every repository backend runs from
// its own tests.
package repotest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"small-library/internal/domain"
	apperrors "small-library/internal/errors"
	"small-library/internal/repository"
	"small-library/internal/validation"
)

// Opener returns empty, initialised repositories for one subtest.
type Opener func(t *testing.T) repository.Repositories

// Run executes the suite against the backend produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("AuthorCreateAndGet", func(t *testing.T) { testAuthorCreateAndGet(t, open(t)) })
	t.Run("AuthorDuplicateName", func(t *testing.T) { testAuthorDuplicateName(t, open(t)) })
	t.Run("AuthorUpdate", func(t *testing.T) { testAuthorUpdate(t, open(t)) })
	t.Run("AuthorListByNames", func(t *testing.T) { testAuthorListByNames(t, open(t)) })
	t.Run("BookGenresRoundTrip", func(t *testing.T) { testBookGenresRoundTrip(t, open(t)) })
	t.Run("BookDuplicateTitle", func(t *testing.T) { testBookDuplicateTitle(t, open(t)) })
	t.Run("BookFilters", func(t *testing.T) { testBookFilters(t, open(t)) })
	t.Run("BookCountByAuthors", func(t *testing.T) { testBookCountByAuthors(t, open(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("DeleteAll", func(t *testing.T) { testDeleteAll(t, open(t)) })
	t.Run("Validation", func(t *testing.T) { testValidation(t, open(t)) })
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func testAuthorCreateAndGet(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()

	author := &domain.Author{Name: "Robert Martin", Born: intPtr(1952)}
	require.NoError(t, repos.Authors.Create(ctx, author))
	require.NotEmpty(t, author.ID)

	got, err := repos.Authors.GetByName(ctx, "Robert Martin")
	require.NoError(t, err)
	if diff := cmp.Diff(author, got); diff != "" {
		t.Errorf("author mismatch (-want +got):\n%s", diff)
	}

	_, err = repos.Authors.GetByName(ctx, "robert martin")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	count, err := repos.Authors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testAuthorDuplicateName(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()

	require.NoError(t, repos.Authors.Create(ctx, &domain.Author{Name: "Martin Fowler"}))
	err := repos.Authors.Create(ctx, &domain.Author{Name: "Martin Fowler"})
	require.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Contains(t, err.Error(), "Martin Fowler")

	count, err := repos.Authors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testAuthorUpdate(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()

	author := &domain.Author{Name: "Sandi Metz"}
	require.NoError(t, repos.Authors.Create(ctx, author))

	author.Born = intPtr(1953)
	require.NoError(t, repos.Authors.Update(ctx, author))

	got, err := repos.Authors.GetByName(ctx, "Sandi Metz")
	require.NoError(t, err)
	require.NotNil(t, got.Born)
	assert.Equal(t, 1953, *got.Born)
	assert.Equal(t, author.ID, got.ID)

	err = repos.Authors.Update(ctx, &domain.Author{ID: missingID(got.ID), Name: "Nobody Here"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testAuthorListByNames(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()

	for _, name := range []string{"Robert Martin", "Martin Fowler", "Joshua Kerievsky"} {
		require.NoError(t, repos.Authors.Create(ctx, &domain.Author{Name: name}))
	}

	got, err := repos.Authors.ListByNames(ctx, []string{"Martin Fowler", "Joshua Kerievsky", "Unknown Person"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Martin Fowler", "Joshua Kerievsky"}, authorNames(got))

	all, err := repos.Authors.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Robert Martin", "Martin Fowler", "Joshua Kerievsky"}, authorNames(all))
}

func testBookGenresRoundTrip(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()

	book := &domain.Book{Title: "Refactoring to patterns", Published: 2008, Author: "Joshua Kerievsky", Genres: []string{"b", "a", "b"}}
	require.NoError(t, repos.Books.Create(ctx, book))
	require.NotEmpty(t, book.ID)

	books, err := repos.Books.List(ctx, domain.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	if diff := cmp.Diff(*book, books[0]); diff != "" {
		t.Errorf("book mismatch (-want +got):\n%s", diff)
	}
}

func testBookDuplicateTitle(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()

	require.NoError(t, repos.Books.Create(ctx, &domain.Book{Title: "Clean Code", Published: 2008, Author: "Robert Martin", Genres: []string{"refactoring"}}))
	err := repos.Books.Create(ctx, &domain.Book{Title: "Clean Code", Published: 2009, Author: "Someone Else", Genres: []string{}})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	count, err := repos.Books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func seedBooks(t *testing.T, repos repository.Repositories) {
	t.Helper()
	books := []domain.Book{
		{Title: "Clean Code", Published: 2008, Author: "Robert Martin", Genres: []string{"refactoring"}},
		{Title: "Agile software development", Published: 2002, Author: "Robert Martin", Genres: []string{"agile", "patterns", "design"}},
		{Title: "Refactoring, edition 2", Published: 2018, Author: "Martin Fowler", Genres: []string{"refactoring"}},
		{Title: "Dune Messiah", Published: 1969, Author: "Frank Herbert", Genres: []string{"science-fiction"}},
		{Title: "Lower Case Author", Published: 2001, Author: "robert martin", Genres: []string{"fiction"}},
	}
	for i := range books {
		require.NoError(t, repos.Books.Create(context.Background(), &books[i]))
	}
}

func testBookFilters(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	seedBooks(t, repos)

	tests := []struct {
		name   string
		filter domain.BookFilter
		want   []string
	}{
		{
			name:   "no filter",
			filter: domain.BookFilter{},
			want:   []string{"Clean Code", "Agile software development", "Refactoring, edition 2", "Dune Messiah", "Lower Case Author"},
		},
		{
			name:   "author is exact and case sensitive",
			filter: domain.BookFilter{Author: strPtr("Robert Martin")},
			want:   []string{"Clean Code", "Agile software development"},
		},
		{
			name:   "genre membership",
			filter: domain.BookFilter{Genre: strPtr("refactoring")},
			want:   []string{"Clean Code", "Refactoring, edition 2"},
		},
		{
			name:   "genre is not a substring match",
			filter: domain.BookFilter{Genre: strPtr("fiction")},
			want:   []string{"Lower Case Author"},
		},
		{
			name:   "author and genre",
			filter: domain.BookFilter{Author: strPtr("Robert Martin"), Genre: strPtr("design")},
			want:   []string{"Agile software development"},
		},
		{
			name:   "nothing matches",
			filter: domain.BookFilter{Author: strPtr("Martin Fowler"), Genre: strPtr("design")},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := repos.Books.List(ctx, tt.filter)
			require.NoError(t, err)
			require.NotNil(t, books)
			assert.ElementsMatch(t, tt.want, bookTitles(books))
		})
	}
}

func testBookCountByAuthors(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	seedBooks(t, repos)

	counts, err := repos.Books.CountByAuthors(ctx, []string{"Robert Martin", "Martin Fowler", "Sandi Metz"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Robert Martin": 2, "Martin Fowler": 1, "Sandi Metz": 0}, counts)

	total, err := repos.Books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func testUsers(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()

	alice := &domain.User{Username: "alice", FavoriteGenre: "refactoring"}
	require.NoError(t, repos.Users.Create(ctx, alice))
	require.NotEmpty(t, alice.ID)

	byName, err := repos.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, *alice, *byName)

	byID, err := repos.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, *alice, *byID)

	_, err = repos.Users.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Users.GetByID(ctx, missingID(alice.ID))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repos.Users.Create(ctx, &domain.User{Username: "alice", FavoriteGenre: "crime"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	users, err := repos.Users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testDeleteAll(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	seedBooks(t, repos)
	require.NoError(t, repos.Authors.Create(ctx, &domain.Author{Name: "Robert Martin"}))
	require.NoError(t, repos.Users.Create(ctx, &domain.User{Username: "bob", FavoriteGenre: "crime"}))

	require.NoError(t, repos.Books.DeleteAll(ctx))
	require.NoError(t, repos.Authors.DeleteAll(ctx))
	require.NoError(t, repos.Users.DeleteAll(ctx))

	books, err := repos.Books.Count(ctx)
	require.NoError(t, err)
	authors, err := repos.Authors.Count(ctx)
	require.NoError(t, err)
	users, err := repos.Users.List(ctx)
	require.NoError(t, err)
	assert.Zero(t, books)
	assert.Zero(t, authors)
	assert.Empty(t, users)
}

func testValidation(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	repos = repository.WithValidation(repos, validation.New())

	err := repos.Books.Create(ctx, &domain.Book{Title: "Abc", Published: 2000, Author: "Someone"})
	var apiErr *apperrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apperrors.CodeBadUserInput, apiErr.Code)

	err = repos.Authors.Create(ctx, &domain.Author{Name: "Bob"})
	require.ErrorAs(t, err, &apiErr)

	err = repos.Users.Create(ctx, &domain.User{Username: "carol"})
	require.ErrorAs(t, err, &apiErr)

	count, err := repos.Books.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// missingID returns an ID in the same format as existing that no record has.
func missingID(existing string) string {
	if len(existing) == 24 {
		return "000000000000000000000000"
	}
	if len(existing) == 36 {
		return "00000000-0000-0000-0000-000000000000"
	}
	return "999999999"
}

func authorNames(authors []domain.Author) []string {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.Name
	}
	return names
}

func bookTitles(books []domain.Book) []string {
	titles := make([]string, len(books))
	for i, b := range books {
		titles[i] = b.Title
	}
	return titles
}
