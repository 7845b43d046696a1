package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rndindex/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LockAPI is the subset of the DynamoDB client the lock needs
type LockAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DistributedLock serialises rebuild runs across processes using DynamoDB
// conditional writes. An expired lock can be taken over by the next run.
type DistributedLock struct {
	client       LockAPI
	tableName    string
	resourceName string
	logger       *zap.Logger
	now          func() time.Time
}

// NewDistributedLock creates a new distributed lock instance
func NewDistributedLock(client LockAPI, tableName, resourceName string, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		client:       client,
		tableName:    tableName,
		resourceName: resourceName,
		logger:       logger,
		now:          time.Now,
	}
}

func (dl *DistributedLock) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("LOCK#%s", dl.resourceName)},
		"SK": &types.AttributeValueMemberS{Value: "LOCK"},
	}
}

// Acquire attempts to take the lock for ttl
func (dl *DistributedLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (ports.Lock, error) {
	lockID := uuid.NewString()
	now := dl.now().UTC()
	expiresAt := now.Add(ttl)

	item := dl.key()
	item["LockID"] = &types.AttributeValueMemberS{Value: lockID}
	item["Owner"] = &types.AttributeValueMemberS{Value: owner}
	item["AcquiredAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)}
	item["ExpiresAt"] = &types.AttributeValueMemberS{Value: expiresAt.Format(time.RFC3339Nano)}
	item["TTL"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())}

	// Try to acquire the lock using conditional write
	input := &dynamodb.PutItemInput{
		TableName:           aws.String(dl.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	}

	if _, err := dl.client.PutItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			dl.logger.Debug("Failed to acquire lock - already held",
				zap.String("resource", dl.resourceName),
				zap.String("owner", owner),
			)
			return nil, ports.ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	dl.logger.Debug("Lock acquired successfully",
		zap.String("resource", dl.resourceName),
		zap.String("lockID", lockID),
		zap.String("owner", owner),
		zap.Duration("ttl", ttl),
	)

	return &distributedLockHandle{lock: dl, lockID: lockID, owner: owner}, nil
}

func (dl *DistributedLock) release(ctx context.Context, lockID, owner string) error {
	input := &dynamodb.DeleteItemInput{
		TableName:           aws.String(dl.tableName),
		Key:                 dl.key(),
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
			":owner":  &types.AttributeValueMemberS{Value: owner},
		},
	}

	if _, err := dl.client.DeleteItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			dl.logger.Warn("Lock already released or taken over after expiry",
				zap.String("resource", dl.resourceName),
				zap.String("lockID", lockID),
			)
			return nil
		}
		return fmt.Errorf("failed to release lock: %w", err)
	}

	dl.logger.Debug("Lock released successfully",
		zap.String("resource", dl.resourceName),
		zap.String("lockID", lockID),
	)
	return nil
}

type distributedLockHandle struct {
	lock     *DistributedLock
	lockID   string
	owner    string
	released bool
}

// Release releases the lock
func (h *distributedLockHandle) Release(ctx context.Context) error {
	if h.released {
		return nil
	}
	h.released = true
	return h.lock.release(ctx, h.lockID, h.owner)
}
