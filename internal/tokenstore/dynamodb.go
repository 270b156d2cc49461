package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/marcogenualdo/notes-gate/internal/auth"
	"github.com/marcogenualdo/notes-gate/internal/config"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// dynamoItem is the table layout: partition key "session", the token set
// under "token" and the table TTL attribute "ttl" in epoch seconds.
type dynamoItem struct {
	Session string        `dynamodbav:"session"`
	Token   auth.TokenSet `dynamodbav:"token"`
	TTL     int64         `dynamodbav:"ttl"`
}

// DynamoDBStore relies on the table's native TTL for reaping. Deletion by TTL
// lags, so reads also drop records whose ttl has passed.
type DynamoDBStore struct {
	api    DynamoDBAPI
	table  string
	expiry expiry
}

func NewDynamoDBStore(ctx context.Context, cfg config.DynamoDBConfig, grace time.Duration) (*DynamoDBStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		// DynamoDB Local accepts any credentials.
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newDynamoDBStore(client, cfg.TableName, grace), nil
}

func newDynamoDBStore(api DynamoDBAPI, table string, grace time.Duration) *DynamoDBStore {
	return &DynamoDBStore{api: api, table: table, expiry: newExpiry(grace)}
}

func (ds *DynamoDBStore) Put(ctx context.Context, tokenSet *auth.TokenSet) (string, error) {
	return insert(ctx, func(ctx context.Context, sessionID string) error {
		item, err := attributevalue.MarshalMap(dynamoItem{
			Session: sessionID,
			Token:   *tokenSet,
			TTL:     ds.expiry.expiresAt(tokenSet).Unix(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		_, err = ds.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                aws.String(ds.table),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#session)"),
			ExpressionAttributeNames: map[string]string{"#session": "session"},
		})
		if isConditionFailed(err) {
			return ErrConflict
		}
		if err != nil {
			return storeError("put", err)
		}
		return nil
	})
}

func (ds *DynamoDBStore) Get(ctx context.Context, sessionID string) (*Record, bool, error) {
	out, err := ds.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.table),
		Key:            ds.keyOf(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, storeError("get", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, storeError("get", err)
	}

	rec := &Record{SessionID: item.Session, TokenSet: item.Token, ExpiresAt: item.TTL}
	if rec.Expired(ds.expiry.now()) {
		return nil, false, nil
	}
	return rec, true, nil
}

func (ds *DynamoDBStore) Update(ctx context.Context, sessionID string, tokenSet *auth.TokenSet) error {
	values, err := attributevalue.MarshalMap(map[string]any{
		":token": *tokenSet,
		":ttl":   ds.expiry.expiresAt(tokenSet).Unix(),
		":now":   ds.expiry.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = ds.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(ds.table),
		Key:                 ds.keyOf(sessionID),
		UpdateExpression:    aws.String("SET #token = :token, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_exists(#session) AND #ttl > :now"),
		ExpressionAttributeNames: map[string]string{
			"#session": "session",
			"#token":   "token",
			"#ttl":     "ttl",
		},
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return storeError("update", err)
	}
	return nil
}

func (ds *DynamoDBStore) Remove(ctx context.Context, sessionID string) error {
	_, err := ds.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(ds.table),
		Key:       ds.keyOf(sessionID),
	})
	if err != nil {
		return storeError("remove", err)
	}
	return nil
}

func (ds *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := ds.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(ds.table)})
	if err != nil {
		return storeError("ping", err)
	}
	return nil
}

func (ds *DynamoDBStore) Close() error {
	return nil
}

func (ds *DynamoDBStore) keyOf(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"session": &types.AttributeValueMemberS{Value: sessionID},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
