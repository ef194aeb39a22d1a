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

type userDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Username      string             `bson:"username"`
	FavoriteGenre string             `bson:"favoriteGenre"`
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{ID: d.ID.Hex(), Username: d.Username, FavoriteGenre: d.FavoriteGenre}
}

type UserRepository struct {
	coll *mongo.Collection
}

func (r *UserRepository) Init(ctx context.Context) error {
	return ensureUniqueIndex(ctx, r.coll, "username")
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	res, err := r.coll.InsertOne(ctx, userDocument{Username: user.Username, FavoriteGenre: user.FavoriteGenre})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.Duplicate("User", "username", user.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = insertedHex(res)
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]domain.User, len(docs))
	for i, d := range docs {
		users[i] = *d.toDomain()
	}
	return users, nil
}

func (r *UserRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	return nil
}
