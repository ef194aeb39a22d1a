package graph

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"small-library/internal/domain"
	"small-library/internal/service"
)

type loadersKey struct{}

// batchWait is how long a loader collects keys before issuing one lookup.
const batchWait = 2 * time.Millisecond

// Loaders batches the per-item lookups of a single request: the author of
// each book and the book count of each author.
type Loaders struct {
	Authors    *dataloader.Loader[string, *domain.Author]
	BookCounts *dataloader.Loader[string, int]
}

// NewLoaders returns request-scoped loaders. They batch but never memoise:
// mutation fields run one after another, and a field must see the writes of
// the fields before it.
func NewLoaders(catalog service.CatalogService) *Loaders {
	return &Loaders{
		Authors: dataloader.NewBatchedLoader(authorBatch(catalog),
			dataloader.WithWait[string, *domain.Author](batchWait),
			dataloader.WithCache[string, *domain.Author](&dataloader.NoCache[string, *domain.Author]{})),
		BookCounts: dataloader.NewBatchedLoader(bookCountBatch(catalog),
			dataloader.WithWait[string, int](batchWait),
			dataloader.WithCache[string, int](&dataloader.NoCache[string, int]{})),
	}
}

// WithLoaders attaches fresh loaders to ctx.
func WithLoaders(ctx context.Context, catalog service.CatalogService) context.Context {
	return context.WithValue(ctx, loadersKey{}, NewLoaders(catalog))
}

func loadersFrom(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey{}).(*Loaders)
	return l
}

// authorBatch resolves names to authors; unknown names yield a nil author.
func authorBatch(catalog service.CatalogService) dataloader.BatchFunc[string, *domain.Author] {
	return func(ctx context.Context, names []string) []*dataloader.Result[*domain.Author] {
		results := make([]*dataloader.Result[*domain.Author], len(names))

		byName, err := catalog.AuthorsByNames(ctx, names)
		for i, name := range names {
			if err != nil {
				results[i] = &dataloader.Result[*domain.Author]{Error: err}
				continue
			}
			var author *domain.Author
			if a, ok := byName[name]; ok {
				author = &a
			}
			results[i] = &dataloader.Result[*domain.Author]{Data: author}
		}
		return results
	}
}

func bookCountBatch(catalog service.CatalogService) dataloader.BatchFunc[string, int] {
	return func(ctx context.Context, names []string) []*dataloader.Result[int] {
		results := make([]*dataloader.Result[int], len(names))

		counts, err := catalog.BookCounts(ctx, names)
		for i, name := range names {
			if err != nil {
				results[i] = &dataloader.Result[int]{Error: err}
				continue
			}
			results[i] = &dataloader.Result[int]{Data: counts[name]}
		}
		return results
	}
}
