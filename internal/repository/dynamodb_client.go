package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"prompt-relay/internal/domain"
)

const (
	pkPrefixExchange = "EXCHANGE#"
	skPrefixAt       = "AT#"
	ttlDuration      = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client writes exchange records to a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: strings.TrimSpace(tableName), now: time.Now}, nil
}

func exchangePK(id string) string {
	return pkPrefixExchange + id
}

func exchangeSK(ts time.Time) string {
	return skPrefixAt + ts.UTC().Format(time.RFC3339Nano)
}

// RecordExchange persists one relayed exchange. Records are immutable; an
// existing item with the same key is never overwritten.
func (c *Client) RecordExchange(ctx context.Context, ex domain.Exchange) error {
	if strings.TrimSpace(ex.ID) == "" {
		return errors.New("repository: RecordExchange: exchange ID is required")
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = c.now()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                exchangeItem(ex),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordExchange: %w", err)
	}
	return nil
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: exchangePK(ex.ID)},
		"SK":        &types.AttributeValueMemberS{Value: exchangeSK(ex.CreatedAt)},
		"model":     &types.AttributeValueMemberS{Value: ex.Model},
		"prompt":    &types.AttributeValueMemberS{Value: ex.Prompt},
		"latencyMs": &types.AttributeValueMemberN{Value: strconv.FormatInt(ex.Latency.Milliseconds(), 10)},
		"createdAt": &types.AttributeValueMemberS{Value: ex.CreatedAt.UTC().Format(time.RFC3339)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ex.CreatedAt.Add(ttlDuration).Unix(), 10)},
	}
	if ex.CorrelationID != "" {
		item["correlationId"] = &types.AttributeValueMemberS{Value: ex.CorrelationID}
	}
	if ex.ErrorCode != "" {
		item["status"] = &types.AttributeValueMemberS{Value: "failed"}
		item["errorCode"] = &types.AttributeValueMemberS{Value: ex.ErrorCode}
		item["error"] = &types.AttributeValueMemberS{Value: ex.Error}
		if ex.UpstreamStatus > 0 {
			item["upstreamStatus"] = &types.AttributeValueMemberN{Value: strconv.Itoa(ex.UpstreamStatus)}
		}
	} else {
		item["status"] = &types.AttributeValueMemberS{Value: "complete"}
		item["result"] = &types.AttributeValueMemberS{Value: ex.Result}
	}
	return item
}
