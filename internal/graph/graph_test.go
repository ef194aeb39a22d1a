package graph_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"small-library/internal/auth"
	"small-library/internal/domain"
	"small-library/internal/graph"
	"small-library/internal/repository"
	"small-library/internal/repository/memory"
	"small-library/internal/service"
	"small-library/internal/validation"
)

type env struct {
	schema  *graphql.Schema
	catalog service.CatalogService
	repos   repository.Repositories
	tokens  *auth.TokenService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	repos := repository.WithValidation(memory.New().Repositories(), validation.New())
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	catalog := service.NewCatalogService(repos)
	users := service.NewUserService(repos.Users, tokens, auth.NewCredentials("secret", ""))
	return &env{
		schema:  graph.NewSchema(catalog, users, log, graph.Options{MaxParallelism: 4}),
		catalog: catalog,
		repos:   repos,
		tokens:  tokens,
	}
}

func (e *env) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	born := 1952
	require.NoError(t, e.repos.Authors.Create(ctx, &domain.Author{Name: "Robert Martin", Born: &born}))
	require.NoError(t, e.repos.Authors.Create(ctx, &domain.Author{Name: "Martin Fowler"}))
	books := []domain.Book{
		{Title: "Clean Code", Published: 2008, Author: "Robert Martin", Genres: []string{"refactoring"}},
		{Title: "Agile software development", Published: 2002, Author: "Robert Martin", Genres: []string{"agile", "patterns", "design"}},
		{Title: "Refactoring, edition 2", Published: 2018, Author: "Martin Fowler", Genres: []string{"refactoring"}},
	}
	for i := range books {
		require.NoError(t, e.repos.Books.Create(ctx, &books[i]))
	}
}

type gqlError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions"`
}

func (e *env) exec(t *testing.T, ctx context.Context, query string, vars map[string]any, out any) []gqlError {
	t.Helper()

	// variables arrive JSON-decoded over HTTP, so numbers are float64
	var decodedVars map[string]any
	if vars != nil {
		b, err := json.Marshal(vars)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &decodedVars))
	}

	resp := e.schema.Exec(ctx, query, "", decodedVars)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	if out != nil && len(decoded.Data) > 0 {
		require.NoError(t, json.Unmarshal(decoded.Data, out))
	}
	return decoded.Errors
}

func withUser(ctx context.Context) context.Context {
	return auth.WithUser(ctx, &domain.User{ID: "u1", Username: "alice", FavoriteGenre: "refactoring"})
}

type bookJSON struct {
	Title     string   `json:"title"`
	Published int      `json:"published"`
	Genres    []string `json:"genres"`
	Author    struct {
		Name      string `json:"name"`
		Born      *int   `json:"born"`
		BookCount int    `json:"bookCount"`
	} `json:"author"`
}

const allBooksQuery = `
query($author: String, $genre: String) {
  allBooks(author: $author, genre: $genre) {
    title
    published
    genres
    author { name born bookCount }
  }
}`

func TestAllBooks(t *testing.T) {
	for _, batched := range []bool{false, true} {
		t.Run(map[bool]string{false: "direct", true: "batched"}[batched], func(t *testing.T) {
			e := newEnv(t)
			e.seed(t)

			ctx := context.Background()
			if batched {
				ctx = graph.WithLoaders(ctx, e.catalog)
			}

			var data struct {
				AllBooks []bookJSON `json:"allBooks"`
			}
			errs := e.exec(t, ctx, allBooksQuery, map[string]any{"author": "Robert Martin"}, &data)
			require.Empty(t, errs)
			require.Len(t, data.AllBooks, 2)

			first := data.AllBooks[0]
			assert.Equal(t, "Clean Code", first.Title)
			assert.Equal(t, 2008, first.Published)
			assert.Equal(t, "Robert Martin", first.Author.Name)
			require.NotNil(t, first.Author.Born)
			assert.Equal(t, 1952, *first.Author.Born)
			assert.Equal(t, 2, first.Author.BookCount)
		})
	}
}

func TestAllBooksFilters(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	tests := []struct {
		name string
		vars map[string]any
		want []string
	}{
		{"none", nil, []string{"Clean Code", "Agile software development", "Refactoring, edition 2"}},
		{"genre", map[string]any{"genre": "refactoring"}, []string{"Clean Code", "Refactoring, edition 2"}},
		{"author and genre", map[string]any{"author": "Robert Martin", "genre": "refactoring"}, []string{"Clean Code"}},
		{"unknown author", map[string]any{"author": "robert martin"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data struct {
				AllBooks []struct {
					Title string `json:"title"`
				} `json:"allBooks"`
			}
			errs := e.exec(t, context.Background(), `query($author: String, $genre: String) { allBooks(author: $author, genre: $genre) { title } }`, tt.vars, &data)
			require.Empty(t, errs)

			got := []string{}
			for _, b := range data.AllBooks {
				got = append(got, b.Title)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestCountsAndAuthors(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	var data struct {
		BookCount   int `json:"bookCount"`
		AuthorCount int `json:"authorCount"`
		AllAuthors  []struct {
			Name      string `json:"name"`
			Born      *int   `json:"born"`
			BookCount int    `json:"bookCount"`
		} `json:"allAuthors"`
	}
	ctx := graph.WithLoaders(context.Background(), e.catalog)
	errs := e.exec(t, ctx, `{ bookCount authorCount allAuthors { name born bookCount } }`, nil, &data)
	require.Empty(t, errs)

	assert.Equal(t, 3, data.BookCount)
	assert.Equal(t, 2, data.AuthorCount)
	require.Len(t, data.AllAuthors, 2)
	assert.Equal(t, "Martin Fowler", data.AllAuthors[1].Name)
	assert.Nil(t, data.AllAuthors[1].Born)
	assert.Equal(t, 1, data.AllAuthors[1].BookCount)
}

func TestMe(t *testing.T) {
	e := newEnv(t)

	var data struct {
		Me *struct {
			Username      string `json:"username"`
			FavoriteGenre string `json:"favoriteGenre"`
			ID            string `json:"id"`
		} `json:"me"`
	}
	errs := e.exec(t, context.Background(), `{ me { username favoriteGenre id } }`, nil, &data)
	require.Empty(t, errs)
	assert.Nil(t, data.Me)

	errs = e.exec(t, withUser(context.Background()), `{ me { username favoriteGenre id } }`, nil, &data)
	require.Empty(t, errs)
	require.NotNil(t, data.Me)
	assert.Equal(t, "alice", data.Me.Username)
	assert.Equal(t, "refactoring", data.Me.FavoriteGenre)
	assert.Equal(t, "u1", data.Me.ID)
}

const addBookMutation = `
mutation($title: String!, $author: String!, $published: Int!, $genres: [String!]!) {
  addBook(title: $title, author: $author, published: $published, genres: $genres) {
    title
    genres
    author { name born bookCount }
  }
}`

func TestAddBook(t *testing.T) {
	e := newEnv(t)
	vars := map[string]any{"title": "Refactoring to patterns", "author": "Joshua Kerievsky", "published": 2008, "genres": []string{"b", "a"}}

	t.Run("anonymous", func(t *testing.T) {
		var data struct {
			AddBook *bookJSON `json:"addBook"`
		}
		errs := e.exec(t, context.Background(), addBookMutation, vars, &data)
		require.Len(t, errs, 1)
		assert.Equal(t, "not authenticated", errs[0].Message)
		assert.Equal(t, "UNAUTHENTICATED", errs[0].Extensions["code"])
		assert.Nil(t, data.AddBook)
	})

	t.Run("creates author", func(t *testing.T) {
		var data struct {
			AddBook *bookJSON `json:"addBook"`
		}
		errs := e.exec(t, withUser(context.Background()), addBookMutation, vars, &data)
		require.Empty(t, errs)
		require.NotNil(t, data.AddBook)
		assert.Equal(t, []string{"b", "a"}, data.AddBook.Genres)
		assert.Equal(t, "Joshua Kerievsky", data.AddBook.Author.Name)
		assert.Nil(t, data.AddBook.Author.Born)
		assert.Equal(t, 1, data.AddBook.Author.BookCount)
	})

	t.Run("duplicate title", func(t *testing.T) {
		errs := e.exec(t, withUser(context.Background()), addBookMutation, vars, nil)
		require.Len(t, errs, 1)
		assert.Equal(t, "BAD_USER_INPUT", errs[0].Extensions["code"])
		assert.Equal(t, "Refactoring to patterns", errs[0].Extensions["invalidArgs"])
		assert.Contains(t, errs[0].Message, "already exists")
	})
}

func TestEditAuthor(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	const mutation = `mutation($name: String!, $born: Int!) { editAuthor(name: $name, setBornTo: $born) { name born } }`

	type result struct {
		EditAuthor *struct {
			Name string `json:"name"`
			Born *int   `json:"born"`
		} `json:"editAuthor"`
	}

	var data result
	errs := e.exec(t, context.Background(), mutation, map[string]any{"name": "Nobody Here", "born": 1}, &data)
	require.Len(t, errs, 1)
	assert.Equal(t, "UNAUTHENTICATED", errs[0].Extensions["code"])

	data = result{}
	errs = e.exec(t, withUser(context.Background()), mutation, map[string]any{"name": "Nobody Here", "born": 1}, &data)
	require.Empty(t, errs)
	assert.Nil(t, data.EditAuthor)

	data = result{}
	errs = e.exec(t, withUser(context.Background()), mutation, map[string]any{"name": "Martin Fowler", "born": 1963}, &data)
	require.Empty(t, errs)
	require.NotNil(t, data.EditAuthor)
	assert.Equal(t, 1963, *data.EditAuthor.Born)
}

func TestSerialMutationsSeeEarlierWrites(t *testing.T) {
	e := newEnv(t)
	ctx := graph.WithLoaders(withUser(context.Background()), e.catalog)

	const mutation = `mutation {
		first: addBook(title: "First of two", author: "Ursula Le Guin", published: 1969, genres: ["scifi"]) { author { bookCount born } }
		edit: editAuthor(name: "Ursula Le Guin", setBornTo: 1929) { born }
		second: addBook(title: "Second of two", author: "Ursula Le Guin", published: 1974, genres: ["scifi"]) { author { bookCount born } }
	}`

	type bookAuthor struct {
		Author struct {
			BookCount int  `json:"bookCount"`
			Born      *int `json:"born"`
		} `json:"author"`
	}
	type edited struct {
		Born *int `json:"born"`
	}
	var data struct {
		First  bookAuthor `json:"first"`
		Edit   edited     `json:"edit"`
		Second bookAuthor `json:"second"`
	}
	errs := e.exec(t, ctx, mutation, nil, &data)
	require.Empty(t, errs)

	assert.Equal(t, 1, data.First.Author.BookCount)
	assert.Nil(t, data.First.Author.Born)
	require.NotNil(t, data.Edit.Born)
	assert.Equal(t, 1929, *data.Edit.Born)
	assert.Equal(t, 2, data.Second.Author.BookCount)
	require.NotNil(t, data.Second.Author.Born)
	assert.Equal(t, 1929, *data.Second.Author.Born)
}

func TestCreateUserAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var created struct {
		CreateUser struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"createUser"`
	}
	errs := e.exec(t, ctx, `mutation { createUser(username: "alice", favoriteGenre: "refactoring") { id username } }`, nil, &created)
	require.Empty(t, errs)

	errs = e.exec(t, ctx, `mutation { createUser(username: "al", favoriteGenre: "refactoring") { id } }`, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "BAD_USER_INPUT", errs[0].Extensions["code"])
	assert.Equal(t, "al", errs[0].Extensions["invalidArgs"])

	var login struct {
		Login *struct {
			Value string `json:"value"`
		} `json:"login"`
	}
	errs = e.exec(t, ctx, `mutation { login(username: "alice", password: "secret") { value } }`, nil, &login)
	require.Empty(t, errs)
	require.NotNil(t, login.Login)

	claims, err := e.tokens.Verify(login.Login.Value)
	require.NoError(t, err)
	assert.Equal(t, created.CreateUser.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	wrong := e.exec(t, ctx, `mutation { login(username: "alice", password: "wrong") { value } }`, nil, nil)
	ghost := e.exec(t, ctx, `mutation { login(username: "ghost", password: "secret") { value } }`, nil, nil)
	if diff := cmp.Diff(wrong, ghost); diff != "" {
		t.Errorf("login failures differ (-wrong +ghost):\n%s", diff)
	}
	require.Len(t, wrong, 1)
	assert.Equal(t, "incorrect credentials", wrong[0].Message)
	assert.Equal(t, "BAD_USER_INPUT", wrong[0].Extensions["code"])
}

func TestRecommendedBooks(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	const query = `{ recommendedBooks { title } }`

	errs := e.exec(t, context.Background(), query, nil, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "UNAUTHENTICATED", errs[0].Extensions["code"])

	var data struct {
		RecommendedBooks []struct {
			Title string `json:"title"`
		} `json:"recommendedBooks"`
	}
	errs = e.exec(t, withUser(context.Background()), query, nil, &data)
	require.Empty(t, errs)
	assert.Len(t, data.RecommendedBooks, 2)
}

func TestBookWithoutAuthorRecord(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.repos.Books.Create(context.Background(), &domain.Book{Title: "Orphaned title", Published: 1999, Author: "Ghost Writer"}))

	var data struct {
		AllBooks []bookJSON `json:"allBooks"`
	}
	errs := e.exec(t, context.Background(), `{ allBooks { title author { name born bookCount } } }`, nil, &data)
	require.Empty(t, errs)
	require.Len(t, data.AllBooks, 1)
	assert.Equal(t, "Ghost Writer", data.AllBooks[0].Author.Name)
	assert.Equal(t, 1, data.AllBooks[0].Author.BookCount)
}
