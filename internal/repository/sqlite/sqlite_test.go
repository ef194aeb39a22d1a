package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"small-library/internal/domain"
	"small-library/internal/repository"
	"small-library/internal/repository/repotest"
	"small-library/internal/repository/sqlite"
)

func openRepos(t *testing.T) repository.Repositories {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "nested", "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := sqlite.NewRepositories(db)
	require.NoError(t, repos.Init(context.Background()))
	return repos
}

func TestConformance(t *testing.T) {
	repotest.Run(t, openRepos)
}

func TestInitIsIdempotent(t *testing.T) {
	repos := openRepos(t)
	require.NoError(t, repos.Init(context.Background()))
}

func TestDeleteBooksCascadesGenres(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")

	db, err := sqlite.Open(path)
	require.NoError(t, err)
	defer db.Close()

	repos := sqlite.NewRepositories(db)
	require.NoError(t, repos.Init(ctx))
	require.NoError(t, repos.Books.Create(ctx, &domain.Book{Title: "Demons", Published: 1872, Author: "Fyodor Dostoevsky", Genres: []string{"classic", "revolution"}}))
	require.NoError(t, repos.Books.DeleteAll(ctx))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM book_genres`).Scan(&n))
	assert.Zero(t, n)
}

func TestLookupsWithNonNumericIDs(t *testing.T) {
	repos := openRepos(t)
	ctx := context.Background()

	_, err := repos.Users.GetByID(ctx, "not-a-number")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repos.Authors.Update(ctx, &domain.Author{ID: "abc", Name: "Someone"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
