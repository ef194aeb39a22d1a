package seed_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"small-library/internal/domain"
	"small-library/internal/repository"
	"small-library/internal/repository/memory"
	"small-library/internal/seed"
	"small-library/internal/validation"
)

func TestDefault(t *testing.T) {
	data, err := seed.Default()
	require.NoError(t, err)

	assert.Len(t, data.Authors, 5)
	assert.Len(t, data.Books, 7)
	assert.Len(t, data.Users, 2)

	require.NotNil(t, data.Authors[0].Born)
	assert.Equal(t, 1952, *data.Authors[0].Born)
	assert.Nil(t, data.Authors[3].Born)
	assert.Equal(t, []string{"classic", "crime"}, data.Books[5].Genres)
	assert.Equal(t, "refactoring", data.Users[0].FavoriteGenre)
}

func TestApplyReplacesCatalog(t *testing.T) {
	ctx := context.Background()
	repos := repository.WithValidation(memory.New().Repositories(), validation.New())

	require.NoError(t, repos.Books.Create(ctx, &domain.Book{Title: "Leftover book", Author: "Nobody Known", Genres: []string{}}))
	require.NoError(t, repos.Users.Create(ctx, &domain.User{Username: "keeper", FavoriteGenre: "x"}))

	data, err := seed.Default()
	require.NoError(t, err)

	res, err := seed.Apply(ctx, repos, data, false)
	require.NoError(t, err)
	assert.Equal(t, seed.Result{Authors: 5, Books: 7}, res)

	n, err := repos.Books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = repos.Users.GetByUsername(ctx, "keeper")
	assert.NoError(t, err)

	res, err = seed.Apply(ctx, repos, data, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Users)

	_, err = repos.Users.GetByUsername(ctx, "keeper")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestApplyStopsOnInvalidRecord(t *testing.T) {
	ctx := context.Background()
	repos := repository.WithValidation(memory.New().Repositories(), validation.New())

	data, err := seed.Read(strings.NewReader("books:\n  - title: Oops\n    author: Someone\n"))
	require.NoError(t, err)

	_, err = seed.Apply(ctx, repos, data, false)
	assert.ErrorContains(t, err, `create book "Oops"`)
}
