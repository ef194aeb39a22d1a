package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"small-library/internal/domain"
	"small-library/internal/repository"
)

type bookDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Published int                `bson:"published"`
	Author    string             `bson:"author"`
	Genres    []string           `bson:"genres"`
}

func (d bookDocument) toDomain() domain.Book {
	genres := d.Genres
	if genres == nil {
		genres = []string{}
	}
	return domain.Book{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Published: d.Published,
		Author:    d.Author,
		Genres:    genres,
	}
}

type BookRepository struct {
	coll *mongo.Collection
}

func (r *BookRepository) Init(ctx context.Context) error {
	if err := ensureUniqueIndex(ctx, r.coll, "title"); err != nil {
		return err
	}
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "genres", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create book indexes: %w", err)
	}
	return nil
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	genres := book.Genres
	if genres == nil {
		genres = []string{}
	}

	res, err := r.coll.InsertOne(ctx, bookDocument{
		Title:     book.Title,
		Published: book.Published,
		Author:    book.Author,
		Genres:    genres,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.Duplicate("Book", "title", book.Title)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	book.ID = insertedHex(res)
	return nil
}

// bookFilter translates filter into a query document. Genre matching uses
// $in against the genres array, which compares whole elements.
func bookFilter(filter domain.BookFilter) bson.D {
	query := bson.D{}
	if filter.Author != nil {
		query = append(query, bson.E{Key: "author", Value: *filter.Author})
	}
	if filter.Genre != nil {
		query = append(query, bson.E{Key: "genres", Value: bson.D{{Key: "$in", Value: bson.A{*filter.Genre}}}})
	}
	return query
}

func (r *BookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	cur, err := r.coll.Find(ctx, bookFilter(filter), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	var docs []bookDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}

	books := make([]domain.Book, len(docs))
	for i, d := range docs {
		books[i] = d.toDomain()
	}
	return books, nil
}

func (r *BookRepository) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return int(n), nil
}

func countByAuthorsPipeline(names []string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "author", Value: bson.D{{Key: "$in", Value: names}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$author"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func (r *BookRepository) CountByAuthors(ctx context.Context, names []string) (map[string]int, error) {
	counts := make(map[string]int, len(names))
	if len(names) == 0 {
		return counts, nil
	}
	for _, name := range names {
		counts[name] = 0
	}

	cur, err := r.coll.Aggregate(ctx, countByAuthorsPipeline(names))
	if err != nil {
		return nil, fmt.Errorf("aggregate book counts: %w", err)
	}
	var groups []struct {
		Author string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode book counts: %w", err)
	}
	for _, g := range groups {
		counts[g.Author] = g.Count
	}
	return counts, nil
}

func (r *BookRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("delete books: %w", err)
	}
	return nil
}
