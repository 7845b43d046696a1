package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"rndindex/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLockAPI struct {
	mock.Mock
}

func (m *mockLockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *mockLockAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func TestDistributedLock_AcquireAndRelease(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := new(mockLockAPI)
	client.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
		return aws.ToString(in.TableName) == "locks" && pk == "LOCK#reference-index"
	})).Return(nil).Once()
	client.On("DeleteItem", ctx, mock.Anything).Return(nil).Once()
	lock := NewDistributedLock(client, "locks", "reference-index", zap.NewNop())

	// Act
	handle, err := lock.Acquire(ctx, "run-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, handle.Release(ctx))
	require.NoError(t, handle.Release(ctx))

	// Assert
	client.AssertExpectations(t)
}

func TestDistributedLock_Acquire_Held(t *testing.T) {
	ctx := context.Background()
	client := new(mockLockAPI)
	client.On("PutItem", ctx, mock.Anything).Return(&types.ConditionalCheckFailedException{})
	lock := NewDistributedLock(client, "locks", "reference-index", zap.NewNop())

	handle, err := lock.Acquire(ctx, "run-2", time.Minute)

	assert.Nil(t, handle)
	assert.ErrorIs(t, err, ports.ErrLockHeld)
}

func TestDistributedLock_Acquire_ClientError(t *testing.T) {
	ctx := context.Background()
	client := new(mockLockAPI)
	client.On("PutItem", ctx, mock.Anything).Return(errors.New("network down"))
	lock := NewDistributedLock(client, "locks", "reference-index", zap.NewNop())

	_, err := lock.Acquire(ctx, "run-3", time.Minute)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrLockHeld)
	assert.Contains(t, err.Error(), "network down")
}
