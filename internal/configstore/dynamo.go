package configstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore keeps one item per document, keyed by path.
type DynamoStore struct {
	client       DynamoDBAPI
	tableName    string
	pollInterval time.Duration
	logger       *observability.Logger
	now          func() time.Time
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(client DynamoDBAPI, tableName string, pollInterval time.Duration, logger *observability.Logger) *DynamoStore {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &DynamoStore{
		client:       client,
		tableName:    tableName,
		pollInterval: pollInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// NewDynamoClient builds a client from the default AWS credential chain.
// endpoint overrides the service URL, e.g. for DynamoDB Local.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, domain.StoreError("load AWS configuration", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *DynamoStore) Save(ctx context.Context, path string, cfg domain.AppConfiguration) error {
	data, err := encodeDocument(cfg)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"path":       &types.AttributeValueMemberS{Value: path},
			"document":   &types.AttributeValueMemberS{Value: string(data)},
			"updated_at": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return domain.StoreError(fmt.Sprintf("failed to save configuration in DynamoDB for %s", path), err)
	}
	return nil
}

func (s *DynamoStore) Load(ctx context.Context, path string) (domain.AppConfiguration, bool, error) {
	data, _, exists, err := s.fetch(ctx, path)
	if err != nil || !exists {
		return domain.AppConfiguration{}, false, err
	}
	cfg, err := decodeDocument(data)
	if err != nil {
		return domain.AppConfiguration{}, false, err
	}
	return cfg, true, nil
}

func (s *DynamoStore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	return pollSubscribe(ctx, s.pollInterval, func(ctx context.Context) ([]byte, string, bool, error) {
		return s.fetch(ctx, path)
	}, s.logger)
}

func (s *DynamoStore) fetch(ctx context.Context, path string) ([]byte, string, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"path": &types.AttributeValueMemberS{Value: path},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, "", false, domain.StoreError(fmt.Sprintf("failed to load configuration from DynamoDB for %s", path), err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, "", false, nil
	}

	doc, ok := out.Item["document"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, "", false, domain.StoreError("DynamoDB item has no document attribute", nil)
	}
	version := ""
	if v, ok := out.Item["updated_at"].(*types.AttributeValueMemberS); ok {
		version = v.Value
	}
	return []byte(doc.Value), version, true, nil
}

// Close is a no-op; the SDK client holds no connections that need releasing.
func (s *DynamoStore) Close() error {
	return nil
}
