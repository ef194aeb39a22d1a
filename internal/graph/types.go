package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"small-library/internal/domain"
	"small-library/internal/service"
)

type authorResolver struct {
	author  domain.Author
	catalog service.CatalogService
}

func (r *authorResolver) ID() graphql.ID { return graphql.ID(r.author.ID) }

func (r *authorResolver) Name() string { return r.author.Name }

func (r *authorResolver) Born() *int32 {
	if r.author.Born == nil {
		return nil
	}
	born := int32(*r.author.Born)
	return &born
}

// BookCount is recomputed on every read.
func (r *authorResolver) BookCount(ctx context.Context) (int32, error) {
	if l := loadersFrom(ctx); l != nil {
		n, err := l.BookCounts.Load(ctx, r.author.Name)()
		return int32(n), err
	}
	counts, err := r.catalog.BookCounts(ctx, []string{r.author.Name})
	if err != nil {
		return 0, err
	}
	return int32(counts[r.author.Name]), nil
}

type bookResolver struct {
	book    domain.Book
	catalog service.CatalogService
}

func (r *bookResolver) ID() graphql.ID { return graphql.ID(r.book.ID) }

func (r *bookResolver) Title() string { return r.book.Title }

func (r *bookResolver) Published() int32 { return int32(r.book.Published) }

func (r *bookResolver) Genres() []string {
	if r.book.Genres == nil {
		return []string{}
	}
	return r.book.Genres
}

// Author resolves the stored author by name. A book whose author record is
// missing gets an author carrying only the name.
func (r *bookResolver) Author(ctx context.Context) (*authorResolver, error) {
	var (
		author *domain.Author
		err    error
	)
	if l := loadersFrom(ctx); l != nil {
		author, err = l.Authors.Load(ctx, r.book.Author)()
	} else {
		var byName map[string]domain.Author
		byName, err = r.catalog.AuthorsByNames(ctx, []string{r.book.Author})
		if a, ok := byName[r.book.Author]; ok {
			author = &a
		}
	}
	if err != nil {
		return nil, err
	}
	if author == nil {
		author = &domain.Author{Name: r.book.Author}
	}
	return &authorResolver{author: *author, catalog: r.catalog}, nil
}

type userResolver struct {
	user domain.User
}

func (r *userResolver) ID() graphql.ID { return graphql.ID(r.user.ID) }

func (r *userResolver) Username() string { return r.user.Username }

func (r *userResolver) FavoriteGenre() string { return r.user.FavoriteGenre }

type tokenResolver struct {
	value string
}

func (r *tokenResolver) Value() string { return r.value }
