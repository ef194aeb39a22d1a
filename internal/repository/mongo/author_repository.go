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

type authorDocument struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
	Born *int               `bson:"born,omitempty"`
}

func (d authorDocument) toDomain() domain.Author {
	return domain.Author{ID: d.ID.Hex(), Name: d.Name, Born: d.Born}
}

type AuthorRepository struct {
	coll *mongo.Collection
}

func (r *AuthorRepository) Init(ctx context.Context) error {
	return ensureUniqueIndex(ctx, r.coll, "name")
}

func (r *AuthorRepository) Create(ctx context.Context, author *domain.Author) error {
	res, err := r.coll.InsertOne(ctx, authorDocument{Name: author.Name, Born: author.Born})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.Duplicate("Author", "name", author.Name)
		}
		return fmt.Errorf("insert author: %w", err)
	}
	author.ID = insertedHex(res)
	return nil
}

func (r *AuthorRepository) Update(ctx context.Context, author *domain.Author) error {
	oid, err := objectID(author.ID)
	if err != nil {
		return err
	}

	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, authorDocument{ID: oid, Name: author.Name, Born: author.Born})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.Duplicate("Author", "name", author.Name)
		}
		return fmt.Errorf("replace author: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AuthorRepository) GetByName(ctx context.Context, name string) (*domain.Author, error) {
	var doc authorDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	author := doc.toDomain()
	return &author, nil
}

func (r *AuthorRepository) ListByNames(ctx context.Context, names []string) ([]domain.Author, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: names}}}})
}

func (r *AuthorRepository) List(ctx context.Context) ([]domain.Author, error) {
	return r.find(ctx, bson.D{})
}

func (r *AuthorRepository) find(ctx context.Context, filter bson.D) ([]domain.Author, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find authors: %w", err)
	}
	var docs []authorDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}

	authors := make([]domain.Author, len(docs))
	for i, d := range docs {
		authors[i] = d.toDomain()
	}
	return authors, nil
}

func (r *AuthorRepository) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return int(n), nil
}

func (r *AuthorRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("delete authors: %w", err)
	}
	return nil
}
