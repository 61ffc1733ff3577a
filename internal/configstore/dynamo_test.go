package configstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spherical/image-analyzer/internal/domain"
)

type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *MockDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func item(document, updatedAt string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"path":       &types.AttributeValueMemberS{Value: "p"},
		"document":   &types.AttributeValueMemberS{Value: document},
		"updated_at": &types.AttributeValueMemberS{Value: updatedAt},
	}
}

func TestDynamoStore_Save(t *testing.T) {
	mockDB := new(MockDynamoDB)
	store := NewDynamoStore(mockDB, "configs", time.Second, nil)
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	mockDB.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
		path, _ := input.Item["path"].(*types.AttributeValueMemberS)
		ts, _ := input.Item["updated_at"].(*types.AttributeValueMemberS)
		return *input.TableName == "configs" &&
			path != nil && path.Value == "p" &&
			ts != nil && ts.Value == "2026-01-02T03:04:05Z"
	}), mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)

	require.NoError(t, store.Save(context.Background(), "p", sampleConfig()))
	mockDB.AssertExpectations(t)
}

func TestDynamoStore_SaveError(t *testing.T) {
	mockDB := new(MockDynamoDB)
	store := NewDynamoStore(mockDB, "configs", time.Second, nil)

	mockDB.On("PutItem", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dynamo error"))

	err := store.Save(context.Background(), "p", sampleConfig())
	assert.True(t, domain.IsType(err, domain.ErrorTypeStore))
	assert.Contains(t, err.Error(), "failed to save configuration")
}

func TestDynamoStore_Load(t *testing.T) {
	mockDB := new(MockDynamoDB)
	store := NewDynamoStore(mockDB, "configs", time.Second, nil)

	mockDB.On("GetItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.GetItemInput) bool {
		return *input.TableName == "configs" && *input.ConsistentRead
	}), mock.Anything).Return(&dynamodb.GetItemOutput{Item: item(`{"apiKey":"k"}`, "t1")}, nil).Once()
	mockDB.On("GetItem", mock.Anything, mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()

	cfg, ok, err := store.Load(context.Background(), "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k", cfg.APIKey)
	assert.NotNil(t, cfg.FieldMappings)

	_, ok, err = store.Load(context.Background(), "p")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoStore_SubscribePollsForChanges(t *testing.T) {
	mockDB := new(MockDynamoDB)
	store := NewDynamoStore(mockDB, "configs", 5*time.Millisecond, nil)

	mockDB.On("GetItem", mock.Anything, mock.Anything, mock.Anything).
		Return(&dynamodb.GetItemOutput{Item: item(`{"apiKey":"first"}`, "t1")}, nil).Once()
	mockDB.On("GetItem", mock.Anything, mock.Anything, mock.Anything).
		Return(&dynamodb.GetItemOutput{Item: item(`{"apiKey":"second"}`, "t2")}, nil)

	ch, cancel, err := store.Subscribe(context.Background(), "p")
	require.NoError(t, err)
	defer cancel()

	assert.Equal(t, "first", receive(t, ch).Config.APIKey)
	assert.Equal(t, "second", receive(t, ch).Config.APIKey)
}
