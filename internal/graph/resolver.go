package graph

import (
	"context"

	"small-library/internal/auth"
	"small-library/internal/domain"
	"small-library/internal/service"
)

// Resolver is the root resolver for queries and mutations.
type Resolver struct {
	catalog service.CatalogService
	users   service.UserService
}

func NewResolver(catalog service.CatalogService, users service.UserService) *Resolver {
	return &Resolver{catalog: catalog, users: users}
}

func (r *Resolver) BookCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.BookCount(ctx)
	return int32(n), err
}

func (r *Resolver) AuthorCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.AuthorCount(ctx)
	return int32(n), err
}

func (r *Resolver) AllAuthors(ctx context.Context) ([]*authorResolver, error) {
	authors, err := r.catalog.AllAuthors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*authorResolver, len(authors))
	for i, a := range authors {
		out[i] = &authorResolver{author: a, catalog: r.catalog}
	}
	return out, nil
}

type allBooksArgs struct {
	Author *string
	Genre  *string
}

func (r *Resolver) AllBooks(ctx context.Context, args allBooksArgs) ([]*bookResolver, error) {
	books, err := r.catalog.AllBooks(ctx, domain.BookFilter{Author: args.Author, Genre: args.Genre})
	if err != nil {
		return nil, err
	}
	return r.books(books), nil
}

func (r *Resolver) RecommendedBooks(ctx context.Context) ([]*bookResolver, error) {
	books, err := r.catalog.RecommendedBooks(ctx)
	if err != nil {
		return nil, err
	}
	return r.books(books), nil
}

func (r *Resolver) books(books []domain.Book) []*bookResolver {
	out := make([]*bookResolver, len(books))
	for i, b := range books {
		out[i] = &bookResolver{book: b, catalog: r.catalog}
	}
	return out
}

func (r *Resolver) Me(ctx context.Context) *userResolver {
	user := auth.UserFrom(ctx)
	if user == nil {
		return nil
	}
	return &userResolver{user: *user}
}

type createUserArgs struct {
	Username      string
	FavoriteGenre string
}

func (r *Resolver) CreateUser(ctx context.Context, args createUserArgs) (*userResolver, error) {
	user, err := r.users.CreateUser(ctx, args.Username, args.FavoriteGenre)
	if err != nil {
		return nil, err
	}
	return &userResolver{user: *user}, nil
}

type loginArgs struct {
	Username string
	Password string
}

func (r *Resolver) Login(ctx context.Context, args loginArgs) (*tokenResolver, error) {
	token, err := r.users.Login(ctx, args.Username, args.Password)
	if err != nil {
		return nil, err
	}
	return &tokenResolver{value: token}, nil
}

type addBookArgs struct {
	Title     string
	Author    string
	Published int32
	Genres    []string
}

func (r *Resolver) AddBook(ctx context.Context, args addBookArgs) (*bookResolver, error) {
	book, err := r.catalog.AddBook(ctx, service.AddBookInput{
		Title:     args.Title,
		Author:    args.Author,
		Published: int(args.Published),
		Genres:    args.Genres,
	})
	if err != nil {
		return nil, err
	}
	return &bookResolver{book: *book, catalog: r.catalog}, nil
}

type editAuthorArgs struct {
	Name      string
	SetBornTo int32
}

func (r *Resolver) EditAuthor(ctx context.Context, args editAuthorArgs) (*authorResolver, error) {
	author, err := r.catalog.EditAuthor(ctx, args.Name, int(args.SetBornTo))
	if err != nil || author == nil {
		return nil, err
	}
	return &authorResolver{author: *author, catalog: r.catalog}, nil
}
