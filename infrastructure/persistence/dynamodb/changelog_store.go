package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rndindex/application/ports"
	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	entityChange = "CHANGE"
	entityObject = "OBJECT"
	watermarkPK  = "CHANGELOG"
	watermarkSK  = "WATERMARK"
)

// ChangeLogAPI is the subset of the DynamoDB client the change log store uses
type ChangeLogAPI interface {
	dynamodb.QueryAPIClient
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// ChangeLogStore reads the change log from a single DynamoDB table.
// Each object is a partition: one OBJECT marker plus its CHANGE items,
// sorted by zero-padded log sequence.
type ChangeLogStore struct {
	client    ChangeLogAPI
	tableName string
	logger    *zap.Logger
}

// NewChangeLogStore creates a new DynamoDB backed change log
func NewChangeLogStore(client ChangeLogAPI, tableName string, logger *zap.Logger) *ChangeLogStore {
	return &ChangeLogStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// changeItem represents the DynamoDB item structure for a change record
type changeItem struct {
	PK         string               `dynamodbav:"PK"`
	SK         string               `dynamodbav:"SK"`
	EntityType string               `dynamodbav:"EntityType"`
	Sequence   int64                `dynamodbav:"Sequence"`
	ObjectType string               `dynamodbav:"ObjectType"`
	Key        string               `dynamodbav:"Key"`
	Operation  string               `dynamodbav:"Operation"`
	Attributes []entities.Attribute `dynamodbav:"Attributes"`
	Timestamp  string               `dynamodbav:"Timestamp"`
}

// objectItem marks an object partition and records its first sequence
type objectItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	ObjectType    string `dynamodbav:"ObjectType"`
	Key           string `dynamodbav:"Key"`
	FirstSequence int64  `dynamodbav:"FirstSequence"`
}

func objectPK(id valueobjects.ObjectID) string {
	return fmt.Sprintf("OBJECT#%s#%s", id.Type, id.Key)
}

func changeSK(seq int64) string {
	return fmt.Sprintf("CHANGE#%020d", seq)
}

// Watermark returns the highest allocated sequence number
func (s *ChangeLogStore) Watermark(ctx context.Context) (int64, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: watermarkPK},
			"SK": &types.AttributeValueMemberS{Value: watermarkSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read change log watermark: %w", err)
	}
	if result.Item == nil {
		return 0, nil
	}

	var item struct {
		Sequence int64 `dynamodbav:"Sequence"`
	}
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return 0, fmt.Errorf("failed to unmarshal watermark: %w", err)
	}
	return item.Sequence, nil
}

// ListObjects scans the object markers first seen at or below upTo
func (s *ChangeLogStore) ListObjects(ctx context.Context, upTo int64) ([]valueobjects.ObjectID, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityObject)).
		And(expression.Name("FirstSequence").LessThanEqual(expression.Value(upTo)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var ids []valueobjects.ObjectID
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan objects: %w", err)
		}
		var items []objectItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal objects: %w", err)
		}
		for _, item := range items {
			ids = append(ids, valueobjects.ObjectID{Type: valueobjects.ObjectType(item.ObjectType), Key: item.Key})
		}
	}

	s.logger.Debug("Listed change log objects",
		zap.Int("count", len(ids)),
		zap.Int64("upTo", upTo),
	)
	return ids, nil
}

// GetChanges queries one object's partition up to the given sequence
func (s *ChangeLogStore) GetChanges(ctx context.Context, id valueobjects.ObjectID, upTo int64) ([]entities.ChangeRecord, error) {
	if upTo < 0 {
		return nil, nil
	}
	keyCond := expression.Key("PK").Equal(expression.Value(objectPK(id))).
		And(expression.Key("SK").Between(expression.Value(changeSK(0)), expression.Value(changeSK(upTo))))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var records []entities.ChangeRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query changes for %s: %w", id, err)
		}
		var items []changeItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes for %s: %w", id, err)
		}
		for _, item := range items {
			record, err := item.toRecord()
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
	}
	return records, nil
}

func (item changeItem) toRecord() (entities.ChangeRecord, error) {
	ts, err := time.Parse(time.RFC3339Nano, item.Timestamp)
	if err != nil {
		return entities.ChangeRecord{}, fmt.Errorf("change %d has invalid timestamp %q: %w", item.Sequence, item.Timestamp, err)
	}
	return entities.ChangeRecord{
		Sequence:   item.Sequence,
		ObjectType: valueobjects.ObjectType(item.ObjectType),
		Key:        item.Key,
		Operation:  entities.Operation(item.Operation),
		Attributes: item.Attributes,
		Timestamp:  ts,
	}, nil
}

// Append allocates sequence numbers from the watermark item and writes the
// records. Records that already carry a sequence keep it.
func (s *ChangeLogStore) Append(ctx context.Context, records ...entities.ChangeRecord) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
		if record.Sequence == 0 {
			seq, err := s.nextSequence(ctx)
			if err != nil {
				return err
			}
			record.Sequence = seq
		}
		if err := s.put(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChangeLogStore) nextSequence(ctx context.Context) (int64, error) {
	update := expression.Add(expression.Name("Sequence"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build update expression: %w", err)
	}

	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: watermarkPK},
			"SK": &types.AttributeValueMemberS{Value: watermarkSK},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate change sequence: %w", err)
	}

	n, ok := result.Attributes["Sequence"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("watermark update returned no sequence")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func (s *ChangeLogStore) put(ctx context.Context, record entities.ChangeRecord) error {
	id := record.ObjectID()
	item := changeItem{
		PK:         objectPK(id),
		SK:         changeSK(record.Sequence),
		EntityType: entityChange,
		Sequence:   record.Sequence,
		ObjectType: string(id.Type),
		Key:        id.Key,
		Operation:  string(record.Operation),
		Attributes: record.Attributes,
		Timestamp:  record.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal change record: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to save change record: %w", err)
	}

	marker, err := attributevalue.MarshalMap(objectItem{
		PK:            objectPK(id),
		SK:            entityObject,
		EntityType:    entityObject,
		ObjectType:    string(id.Type),
		Key:           id.Key,
		FirstSequence: record.Sequence,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal object marker: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                marker,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR FirstSequence > :seq"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":seq": &types.AttributeValueMemberN{Value: strconv.FormatInt(record.Sequence, 10)},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return nil // marker already records an earlier sequence
		}
		return fmt.Errorf("failed to save object marker: %w", err)
	}

	s.logger.Debug("Change record appended",
		zap.String("object", id.String()),
		zap.Int64("sequence", record.Sequence),
		zap.String("operation", string(record.Operation)),
	)
	return nil
}

var _ ports.ChangeLogStore = (*ChangeLogStore)(nil)
