package loops

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps loops in a DynamoDB table keyed by subjectId (hash) and
// loopId (range).
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("loops: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("loops: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) Put(ctx context.Context, loop Loop) error {
	item, err := attributevalue.MarshalMap(loop)
	if err != nil {
		return fmt.Errorf("loops: marshal loop: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("loops: persist loop %s: %w", loop.ID, err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, subjectID, loopID string) (Loop, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"subjectId": &types.AttributeValueMemberS{Value: subjectID},
			"loopId":    &types.AttributeValueMemberS{Value: loopID},
		},
	})
	if err != nil {
		return Loop{}, fmt.Errorf("loops: fetch loop %s: %w", loopID, err)
	}
	if out.Item == nil {
		return Loop{}, ErrLoopNotFound
	}
	var loop Loop
	if err := attributevalue.UnmarshalMap(out.Item, &loop); err != nil {
		return Loop{}, fmt.Errorf("loops: decode loop %s: %w", loopID, err)
	}
	return loop, nil
}

func (s *DynamoStore) ListOpen(ctx context.Context, subjectID string) ([]Loop, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("subjectId = :subject"),
		FilterExpression:       aws.String("#status IN (:active, :surfaced)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":subject":  &types.AttributeValueMemberS{Value: subjectID},
			":active":   &types.AttributeValueMemberS{Value: string(StatusActive)},
			":surfaced": &types.AttributeValueMemberS{Value: string(StatusSurfaced)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("loops: list open loops for %s: %w", subjectID, err)
	}

	loops := make([]Loop, 0, len(out.Items))
	for _, item := range out.Items {
		var loop Loop
		if err := attributevalue.UnmarshalMap(item, &loop); err != nil {
			return nil, fmt.Errorf("loops: decode loop item: %w", err)
		}
		loops = append(loops, loop)
	}
	return loops, nil
}
