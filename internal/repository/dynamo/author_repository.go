package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"small-library/internal/domain"
	"small-library/internal/id"
	"small-library/internal/repository"
)

type authorItem struct {
	ID        string `dynamodbav:"id"`
	Name      string `dynamodbav:"name"`
	Born      *int   `dynamodbav:"born,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
}

func (i authorItem) toDomain() domain.Author {
	return domain.Author{ID: i.ID, Name: i.Name, Born: i.Born}
}

func authorsToDomain(items []authorItem) []domain.Author {
	sortByCreated(items, func(i authorItem) string { return i.CreatedAt })
	authors := make([]domain.Author, len(items))
	for i, item := range items {
		authors[i] = item.toDomain()
	}
	return authors
}

type AuthorRepository struct {
	s *Store
}

func (r *AuthorRepository) Init(ctx context.Context) error {
	return r.s.ensureTables(ctx, r.s.tables.authors)
}

func (r *AuthorRepository) Create(ctx context.Context, author *domain.Author) error {
	item := authorItem{ID: id.New(), Name: author.Name, Born: author.Born, CreatedAt: timestamp()}

	err := r.s.create(ctx, r.s.tables.authors, item, uniqueKey("author", "name", author.Name), item.ID)
	if errors.Is(err, errUniqueTaken) {
		return repository.Duplicate("Author", "name", author.Name)
	}
	if err != nil {
		return fmt.Errorf("create author: %w", err)
	}
	author.ID = item.ID
	return nil
}

// Update replaces the author. A name change moves the constraint item in
// the same transaction as the write.
func (r *AuthorRepository) Update(ctx context.Context, author *domain.Author) error {
	current, err := getItem[authorItem](ctx, r.s.client, r.s.tables.authors, author.ID)
	if err != nil {
		return err
	}

	item := authorItem{ID: author.ID, Name: author.Name, Born: author.Born, CreatedAt: current.CreatedAt}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal author: %w", err)
	}

	if current.Name == author.Name {
		_, err = r.s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(r.s.tables.authors),
			Item:                av,
			ConditionExpression: aws.String("attribute_exists(id)"),
		})
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("put author: %w", err)
		}
		return nil
	}

	_, err = r.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.s.uniquePut(uniqueKey("author", "name", author.Name), author.ID),
			r.s.uniqueDelete(uniqueKey("author", "name", current.Name)),
			{
				Put: &types.Put{
					TableName:           aws.String(r.s.tables.authors),
					Item:                av,
					ConditionExpression: aws.String("attribute_exists(id)"),
				},
			},
		},
	})
	switch err = mapTransactionError(err, 0); {
	case errors.Is(err, errUniqueTaken):
		return repository.Duplicate("Author", "name", author.Name)
	case errors.Is(err, errConditionFailed):
		return repository.ErrNotFound
	case err != nil:
		return fmt.Errorf("update author: %w", err)
	}
	return nil
}

func (r *AuthorRepository) GetByName(ctx context.Context, name string) (*domain.Author, error) {
	authorID, err := r.s.lookupUnique(ctx, uniqueKey("author", "name", name))
	if err != nil {
		return nil, err
	}
	item, err := getItem[authorItem](ctx, r.s.client, r.s.tables.authors, authorID)
	if err != nil {
		return nil, err
	}
	author := item.toDomain()
	return &author, nil
}

func (r *AuthorRepository) ListByNames(ctx context.Context, names []string) ([]domain.Author, error) {
	if len(names) == 0 {
		return nil, nil
	}
	items, err := scanIn[authorItem](ctx, r.s.client, r.s.tables.authors, "name", names, "")
	if err != nil {
		return nil, err
	}
	return authorsToDomain(items), nil
}

func (r *AuthorRepository) List(ctx context.Context) ([]domain.Author, error) {
	items, err := scanAll[authorItem](ctx, r.s.client, &dynamodb.ScanInput{TableName: aws.String(r.s.tables.authors)})
	if err != nil {
		return nil, err
	}
	return authorsToDomain(items), nil
}

func (r *AuthorRepository) Count(ctx context.Context) (int, error) {
	return r.s.count(ctx, r.s.tables.authors)
}

func (r *AuthorRepository) DeleteAll(ctx context.Context) error {
	return r.s.deleteAll(ctx, r.s.tables.authors, "author", "name")
}
