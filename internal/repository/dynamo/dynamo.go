// Package dynamo stores the catalog in DynamoDB.
//
// Each record type has its own table keyed by "id". Unique fields (author
// name, book title, username) are enforced through a shared constraints
// table: every create writes the record and a constraint item keyed by
// "<entity>#<field>#<value>" in one transaction guarded by
// attribute_not_exists(pk). The constraint item also carries the record id,
// which makes it the lookup index for those fields.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"small-library/internal/repository"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Config holds configuration for the Store.
type Config struct {
	// TablePrefix is prepended to every table name.
	// Default: "library"
	TablePrefix string
}

func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "library"
	}
}

type tableNames struct {
	authors string
	books   string
	users   string
	uniques string
}

// Store owns the client and table names shared by the repositories.
type Store struct {
	client API
	tables tableNames
}

// New creates a new Store instance.
func New(client API, cfg Config) *Store {
	cfg.validate()
	return &Store{
		client: client,
		tables: tableNames{
			authors: cfg.TablePrefix + "-authors",
			books:   cfg.TablePrefix + "-books",
			users:   cfg.TablePrefix + "-users",
			uniques: cfg.TablePrefix + "-unique-constraints",
		},
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Authors: &AuthorRepository{s: s},
		Books:   &BookRepository{s: s},
		Users:   &UserRepository{s: s},
	}
}

// ensureTable creates a pay-per-request table with a string hash key named
// key, unless it already exists.
func (s *Store) ensureTable(ctx context.Context, name, key string) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err == nil {
		return nil
	}
	var missing *types.ResourceNotFoundException
	if !errors.As(err, &missing) {
		return fmt.Errorf("describe table %s: %w", name, err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(key), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(key), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", name, err)
	}
	return nil
}

func (s *Store) ensureTables(ctx context.Context, table string) error {
	if err := s.ensureTable(ctx, table, "id"); err != nil {
		return err
	}
	return s.ensureTable(ctx, s.tables.uniques, "pk")
}

var (
	errUniqueTaken     = errors.New("unique value taken")
	errConditionFailed = errors.New("condition failed")
)

func uniqueKey(entity, field, value string) string {
	return entity + "#" + field + "#" + value
}

func (s *Store) uniquePut(pk, id string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.tables.uniques),
			Item: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
				"id": &types.AttributeValueMemberS{Value: id},
			},
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

func (s *Store) uniqueDelete(pk string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(s.tables.uniques),
			Key:       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}},
		},
	}
}

// create writes item to table together with its constraint item.
func (s *Store) create(ctx context.Context, table string, item any, uniquePK, id string) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			s.uniquePut(uniquePK, id),
			{
				Put: &types.Put{
					TableName:           aws.String(table),
					Item:                av,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
		},
	})
	return mapTransactionError(err, 0)
}

// mapTransactionError reports errUniqueTaken when the item at uniqueIndex
// failed its condition and errConditionFailed for any other failed condition.
func mapTransactionError(err error, uniqueIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == uniqueIndex {
					return errUniqueTaken
				}
				return errConditionFailed
			}
		}
	}
	return err
}

// lookupUnique returns the id stored under a constraint key.
func (s *Store) lookupUnique(ctx context.Context, pk string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.uniques),
		Key:            map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get constraint: %w", err)
	}
	if out.Item == nil {
		return "", repository.ErrNotFound
	}
	var rec struct {
		ID string `dynamodbav:"id"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return "", fmt.Errorf("unmarshal constraint: %w", err)
	}
	return rec.ID, nil
}

func getItem[T any](ctx context.Context, client API, table, id string) (*T, error) {
	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item from %s: %w", table, err)
	}
	if out.Item == nil {
		return nil, repository.ErrNotFound
	}
	var v T
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, fmt.Errorf("unmarshal item from %s: %w", table, err)
	}
	return &v, nil
}

// scanAll paginates through a scan and unmarshals every item.
func scanAll[T any](ctx context.Context, client API, input *dynamodb.ScanInput) ([]T, error) {
	out := []T{}
	paginator := dynamodb.NewScanPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", aws.ToString(input.TableName), err)
		}
		var items []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", aws.ToString(input.TableName), err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Select:    types.SelectCount,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		n += int(page.Count)
	}
	return n, nil
}

// inFilter builds "#attr IN (:v0, :v1, ...)" for values.
func inFilter(attr string, values []string) (string, map[string]types.AttributeValue) {
	keys := make([]string, len(values))
	exprValues := make(map[string]types.AttributeValue, len(values))
	for i, v := range values {
		key := ":v" + strconv.Itoa(i)
		keys[i] = key
		exprValues[key] = &types.AttributeValueMemberS{Value: v}
	}
	return "#" + attr + " IN (" + strings.Join(keys, ", ") + ")", exprValues
}

// maxInOperands is DynamoDB's limit on IN comparison operands.
const maxInOperands = 100

// scanIn scans table for items whose attr is one of values.
func scanIn[T any](ctx context.Context, client API, table, attr string, values []string, projection string) ([]T, error) {
	out := []T{}
	for chunk := range slices.Chunk(values, maxInOperands) {
		filter, exprValues := inFilter(attr, chunk)
		input := &dynamodb.ScanInput{
			TableName:                 aws.String(table),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeNames:  map[string]string{"#" + attr: attr},
			ExpressionAttributeValues: exprValues,
		}
		if projection != "" {
			input.ProjectionExpression = aws.String(projection)
		}
		items, err := scanAll[T](ctx, client, input)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// batchSize is the BatchWriteItem request limit. Each record deletion needs
// two requests (record and constraint).
const batchSize = 25

// deleteAll removes every record of table along with its constraint items.
func (s *Store) deleteAll(ctx context.Context, table, entity, field string) error {
	records, err := scanAll[map[string]any](ctx, s.client, &dynamodb.ScanInput{
		TableName:                aws.String(table),
		ProjectionExpression:     aws.String("#id, #f"),
		ExpressionAttributeNames: map[string]string{"#id": "id", "#f": field},
	})
	if err != nil {
		return err
	}

	for chunk := range slices.Chunk(records, batchSize/2) {
		requests := map[string][]types.WriteRequest{}
		for _, rec := range chunk {
			id, _ := rec["id"].(string)
			value, _ := rec[field].(string)
			requests[table] = append(requests[table], deleteRequest("id", id))
			requests[s.tables.uniques] = append(requests[s.tables.uniques], deleteRequest("pk", uniqueKey(entity, field, value)))
		}
		if err := s.batchWrite(ctx, requests); err != nil {
			return err
		}
	}
	return nil
}

func deleteRequest(key, value string) types.WriteRequest {
	return types.WriteRequest{
		DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{key: &types.AttributeValueMemberS{Value: value}},
		},
	}
}

func (s *Store) batchWrite(ctx context.Context, requests map[string][]types.WriteRequest) error {
	for attempt := 0; len(requests) > 0; attempt++ {
		if attempt > 0 {
			if attempt > 5 {
				return fmt.Errorf("batch write: unprocessed items after %d attempts", attempt)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*50) * time.Millisecond):
			}
		}
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: requests})
		if err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
		requests = out.UnprocessedItems
	}
	return nil
}

// createdLayout has fixed width so timestamps sort lexically.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

func timestamp() string {
	return time.Now().UTC().Format(createdLayout)
}

// sortByCreated orders scan results, which DynamoDB returns unordered, by
// creation time.
func sortByCreated[T any](items []T, created func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return strings.Compare(created(a), created(b))
	})
}
