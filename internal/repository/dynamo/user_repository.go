package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"small-library/internal/domain"
	"small-library/internal/id"
	"small-library/internal/repository"
)

type userItem struct {
	ID            string `dynamodbav:"id"`
	Username      string `dynamodbav:"username"`
	FavoriteGenre string `dynamodbav:"favorite_genre"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func (i userItem) toDomain() *domain.User {
	return &domain.User{ID: i.ID, Username: i.Username, FavoriteGenre: i.FavoriteGenre}
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Init(ctx context.Context) error {
	return r.s.ensureTables(ctx, r.s.tables.users)
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	item := userItem{ID: id.New(), Username: user.Username, FavoriteGenre: user.FavoriteGenre, CreatedAt: timestamp()}

	err := r.s.create(ctx, r.s.tables.users, item, uniqueKey("user", "username", user.Username), item.ID)
	if errors.Is(err, errUniqueTaken) {
		return repository.Duplicate("User", "username", user.Username)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = item.ID
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	userID, err := r.s.lookupUnique(ctx, uniqueKey("user", "username", username))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, userID)
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	item, err := getItem[userItem](ctx, r.s.client, r.s.tables.users, userID)
	if err != nil {
		return nil, err
	}
	return item.toDomain(), nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	items, err := scanAll[userItem](ctx, r.s.client, &dynamodb.ScanInput{TableName: aws.String(r.s.tables.users)})
	if err != nil {
		return nil, err
	}
	sortByCreated(items, func(i userItem) string { return i.CreatedAt })

	users := make([]domain.User, len(items))
	for i, item := range items {
		users[i] = *item.toDomain()
	}
	return users, nil
}

func (r *UserRepository) DeleteAll(ctx context.Context) error {
	return r.s.deleteAll(ctx, r.s.tables.users, "user", "username")
}
