package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// DynamoStore keeps one item per slot in a DynamoDB table with a "slotKey"
// string partition key and a binary "value" attribute. PutItem is used
// unconditionally — no condition expression — so the semantics stay
// last-writer-wins, matching the Store contract.
type DynamoStore struct {
	svc       *dynamodb.DynamoDB
	tableName string
}

func NewDynamoStore(sess *session.Session, tableName string) *DynamoStore {
	return &DynamoStore{svc: dynamodb.New(sess), tableName: tableName}
}

func (s *DynamoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.svc.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"slotKey": {S: aws.String(key)},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get slot %q: %w", key, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}
	v, ok := out.Item["value"]
	if !ok || v.B == nil {
		return nil, false, nil
	}
	return v.B, true, nil
}

func (s *DynamoStore) Update(ctx context.Context, key string, value []byte) error {
	if value == nil {
		_, err := s.svc.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]*dynamodb.AttributeValue{
				"slotKey": {S: aws.String(key)},
			},
		})
		if err != nil {
			return fmt.Errorf("clear slot %q: %w", key, err)
		}
		return nil
	}

	_, err := s.svc.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]*dynamodb.AttributeValue{
			"slotKey": {S: aws.String(key)},
			"value":   {B: value},
		},
	})
	if err != nil {
		return fmt.Errorf("update slot %q: %w", key, err)
	}
	return nil
}

func (s *DynamoStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string

	scanInput := &dynamodb.ScanInput{
		TableName:            aws.String(s.tableName),
		ProjectionExpression: aws.String("slotKey"),
	}

	for {
		out, err := s.svc.ScanWithContext(ctx, scanInput)
		if err != nil {
			return nil, fmt.Errorf("list slot keys: %w", err)
		}
		for _, item := range out.Items {
			if v, ok := item["slotKey"]; ok && v.S != nil {
				keys = append(keys, *v.S)
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		scanInput.ExclusiveStartKey = out.LastEvaluatedKey
	}

	return keys, nil
}

// compile-time check that DynamoStore implements Store
var _ Store = (*DynamoStore)(nil)
