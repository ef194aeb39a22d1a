package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"small-library/internal/domain"
	"small-library/internal/id"
	"small-library/internal/repository"
)

// bookItem stores genres as a list attribute, which keeps order and
// duplicates. A string set would do neither.
type bookItem struct {
	ID        string   `dynamodbav:"id"`
	Title     string   `dynamodbav:"title"`
	Published int      `dynamodbav:"published"`
	Author    string   `dynamodbav:"author"`
	Genres    []string `dynamodbav:"genres"`
	CreatedAt string   `dynamodbav:"created_at"`
}

func (i bookItem) toDomain() domain.Book {
	genres := i.Genres
	if genres == nil {
		genres = []string{}
	}
	return domain.Book{
		ID:        i.ID,
		Title:     i.Title,
		Published: i.Published,
		Author:    i.Author,
		Genres:    genres,
	}
}

type BookRepository struct {
	s *Store
}

func (r *BookRepository) Init(ctx context.Context) error {
	return r.s.ensureTables(ctx, r.s.tables.books)
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	genres := book.Genres
	if genres == nil {
		genres = []string{}
	}
	item := bookItem{
		ID:        id.New(),
		Title:     book.Title,
		Published: book.Published,
		Author:    book.Author,
		Genres:    genres,
		CreatedAt: timestamp(),
	}

	err := r.s.create(ctx, r.s.tables.books, item, uniqueKey("book", "title", book.Title), item.ID)
	if errors.Is(err, errUniqueTaken) {
		return repository.Duplicate("Book", "title", book.Title)
	}
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	book.ID = item.ID
	return nil
}

// bookScanFilter builds the filter expression for filter. contains() on a
// list attribute compares whole elements.
func bookScanFilter(filter domain.BookFilter) (string, map[string]string, map[string]types.AttributeValue) {
	var (
		expr   string
		names  = map[string]string{}
		values = map[string]types.AttributeValue{}
	)
	if filter.Author != nil {
		expr = "#author = :author"
		names["#author"] = "author"
		values[":author"] = &types.AttributeValueMemberS{Value: *filter.Author}
	}
	if filter.Genre != nil {
		if expr != "" {
			expr += " AND "
		}
		expr += "contains(#genres, :genre)"
		names["#genres"] = "genres"
		values[":genre"] = &types.AttributeValueMemberS{Value: *filter.Genre}
	}
	return expr, names, values
}

func (r *BookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(r.s.tables.books)}
	if expr, names, values := bookScanFilter(filter); expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	items, err := scanAll[bookItem](ctx, r.s.client, input)
	if err != nil {
		return nil, err
	}
	sortByCreated(items, func(i bookItem) string { return i.CreatedAt })

	books := make([]domain.Book, len(items))
	for i, item := range items {
		books[i] = item.toDomain()
	}
	return books, nil
}

func (r *BookRepository) Count(ctx context.Context) (int, error) {
	return r.s.count(ctx, r.s.tables.books)
}

func (r *BookRepository) CountByAuthors(ctx context.Context, names []string) (map[string]int, error) {
	counts := make(map[string]int, len(names))
	if len(names) == 0 {
		return counts, nil
	}
	for _, name := range names {
		counts[name] = 0
	}

	items, err := scanIn[bookItem](ctx, r.s.client, r.s.tables.books, "author", names, "#author")
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		counts[item.Author]++
	}
	return counts, nil
}

func (r *BookRepository) DeleteAll(ctx context.Context) error {
	return r.s.deleteAll(ctx, r.s.tables.books, "book", "title")
}
