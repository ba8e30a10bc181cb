package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/moodmeter/internal/models"
)

const (
	MAX_BATCH_WRITE   = 25
	MAX_WRITE_RETRIES = 3
)

// DynamoDBAPI is the part of *dynamodb.Client the repository uses.
type DynamoDBAPI interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type FeedbackRepository struct {
	client DynamoDBAPI
	table  string

	initialBackoff time.Duration
}

func NewFeedbackRepository(client DynamoDBAPI, table string) *FeedbackRepository {
	return &FeedbackRepository{
		client:         client,
		table:          table,
		initialBackoff: 500 * time.Millisecond,
	}
}

// EnsureTable creates the feedback table (on-demand, keyed by id) when it
// does not exist yet. Used against DynamoDB Local in development.
func (r *FeedbackRepository) EnsureTable(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("[DynamoDB] Failed to describe table %s: %w", r.table, err)
	}

	slog.Info("[DynamoDB] Creating feedback table", slog.String("table", r.table))
	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(r.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to create table %s: %w", r.table, err)
	}
	return nil
}

func (r *FeedbackRepository) Save(ctx context.Context, f models.Feedback) error {
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to marshal feedback: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to put feedback: %w", err)
	}
	return nil
}

// BatchSave writes items in chunks of MAX_BATCH_WRITE, retrying unprocessed
// items with a doubling backoff. Items still unprocessed after the retries
// make it fail.
func (r *FeedbackRepository) BatchSave(ctx context.Context, items []models.Feedback) error {
	for i := 0; i < len(items); i += MAX_BATCH_WRITE {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := min(i+MAX_BATCH_WRITE, len(items))
		writeRequests := make([]types.WriteRequest, 0, end-i)
		for _, f := range items[i:end] {
			item, err := attributevalue.MarshalMap(f)
			if err != nil {
				return fmt.Errorf("[DynamoDB] Failed to marshal feedback %s: %w", f.ID, err)
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := r.writeChunk(ctx, writeRequests); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Successfully stored feedback", slog.Int("count", len(items)))
	return nil
}

func (r *FeedbackRepository) writeChunk(ctx context.Context, writeRequests []types.WriteRequest) error {
	out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			r.table: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write feedback: %w", err)
	}

	retryCount := 0
	backoff := r.initialBackoff
	for len(out.UnprocessedItems) > 0 && retryCount < MAX_WRITE_RETRIES {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retryCount+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[r.table])))

		out, err = r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to retry batch write: %w", err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[r.table]); remaining > 0 {
		slog.Error("[DynamoDB] Some items were not written even after retries",
			slog.Int("remaining_items", remaining))
		return fmt.Errorf("[DynamoDB] %d items left unprocessed after %d retries", remaining, MAX_WRITE_RETRIES)
	}
	return nil
}

func (r *FeedbackRepository) List(ctx context.Context) ([]models.Feedback, error) {
	var feedback []models.Feedback
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.table),
	})

	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Scan for feedback failed: %w", err)
		}
		var page []models.Feedback
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal feedback page", slog.String("error", err.Error()))
			return nil, err
		}
		feedback = append(feedback, page...)
	}

	slog.Info("[DynamoDB] Successfully retrieved feedback", slog.Int("count", len(feedback)))
	return feedback, nil
}
