// Package seed loads the demo catalog into a store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"small-library/internal/domain"
	"small-library/internal/repository"
)

//go:embed seed.yaml
var defaultData []byte

// Data is a catalog fixture.
type Data struct {
	Authors []domain.Author `yaml:"authors"`
	Books   []domain.Book   `yaml:"books"`
	Users   []domain.User   `yaml:"users"`
}

// Default returns the built-in demo catalog.
func Default() (*Data, error) {
	return Parse(defaultData)
}

// Read decodes a YAML fixture from r.
func Read(r io.Reader) (*Data, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed data: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode seed data: %w", err)
	}
	for i := range data.Books {
		if data.Books[i].Genres == nil {
			data.Books[i].Genres = []string{}
		}
	}
	return &data, nil
}

// Result counts what Apply inserted.
type Result struct {
	Authors int
	Books   int
	Users   int
}

// Apply replaces the catalog with data. Users are replaced only when
// withUsers is set; otherwise existing accounts are left alone.
func Apply(ctx context.Context, repos repository.Repositories, data *Data, withUsers bool) (Result, error) {
	var res Result

	if err := repos.Books.DeleteAll(ctx); err != nil {
		return res, fmt.Errorf("clear books: %w", err)
	}
	if err := repos.Authors.DeleteAll(ctx); err != nil {
		return res, fmt.Errorf("clear authors: %w", err)
	}
	if withUsers {
		if err := repos.Users.DeleteAll(ctx); err != nil {
			return res, fmt.Errorf("clear users: %w", err)
		}
	}

	for _, a := range data.Authors {
		author := a
		if err := repos.Authors.Create(ctx, &author); err != nil {
			return res, fmt.Errorf("create author %q: %w", a.Name, err)
		}
		res.Authors++
	}
	for _, b := range data.Books {
		book := b
		if err := repos.Books.Create(ctx, &book); err != nil {
			return res, fmt.Errorf("create book %q: %w", b.Title, err)
		}
		res.Books++
	}
	if !withUsers {
		return res, nil
	}
	for _, u := range data.Users {
		user := u
		if err := repos.Users.Create(ctx, &user); err != nil {
			return res, fmt.Errorf("create user %q: %w", u.Username, err)
		}
		res.Users++
	}
	return res, nil
}
