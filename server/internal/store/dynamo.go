package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/config"
)

// dynamoItem is the table layout: partition key motor_id, sort key timestamp.
type dynamoItem struct {
	MotorID     string  `dynamodbav:"motor_id"`
	Timestamp   float64 `dynamodbav:"timestamp"`
	ID          string  `dynamodbav:"id"`
	Temperature float64 `dynamodbav:"temperature"`
	Vibration   float64 `dynamodbav:"vibration"`
	RPM         float64 `dynamodbav:"rpm"`
	Load        float64 `dynamodbav:"load"`
	Status      string  `dynamodbav:"status"`
}

// Dynamo stores readings in a DynamoDB table partitioned by motor. Recent and
// Count read the partition of the motor the store was opened for.
type Dynamo struct {
	client  dynamodbiface.DynamoDBAPI
	table   string
	motorID string
}

// OpenDynamo builds a DynamoDB client for the configured region and endpoint.
func OpenDynamo(cfg config.DynamoDBConfig, motorID string) (*Dynamo, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("store: aws session: %w", err)
	}
	return NewDynamo(dynamodb.New(sess), cfg.Table, motorID), nil
}

// NewDynamo wraps an existing DynamoDB client.
func NewDynamo(client dynamodbiface.DynamoDBAPI, table, motorID string) *Dynamo {
	return &Dynamo{client: client, table: table, motorID: motorID}
}

// Append writes r into its motor's partition. The put is conditional on the
// (motor_id, timestamp) key being free, so a second reading with the same
// timestamp fails with ErrConflict instead of replacing the first.
func (s *Dynamo) Append(ctx context.Context, r types.Reading) error {
	motor := r.MotorID
	if motor == "" {
		motor = s.motorID
	}
	item, err := dynamodbattribute.MarshalMap(dynamoItem{
		MotorID:     motor,
		Timestamp:   r.Timestamp,
		ID:          r.ID,
		Temperature: r.Temperature,
		Vibration:   r.Vibration,
		RPM:         r.RPM,
		Load:        r.Load,
		Status:      r.Status,
	})
	if err != nil {
		return fmt.Errorf("store: marshal dynamodb item: %w", err)
	}
	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#ts)"),
		ExpressionAttributeNames: map[string]*string{"#ts": aws.String("timestamp")},
	})
	var aerr awserr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException:
		return fmt.Errorf("%w: motor %s at %v", ErrConflict, motor, r.Timestamp)
	default:
		return fmt.Errorf("store: dynamodb put: %w", err)
	}
}

func (s *Dynamo) Recent(ctx context.Context, limit int) ([]types.Reading, error) {
	return s.RecentByMotor(ctx, s.motorID, limit)
}

func (s *Dynamo) RecentByMotor(ctx context.Context, motorID string, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	out, err := s.client.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("motor_id = :m"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":m": {S: aws.String(motorID)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int64(int64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("store: dynamodb query: %w", err)
	}

	var items []dynamoItem
	if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("store: unmarshal dynamodb items: %w", err)
	}
	rs := make([]types.Reading, len(items))
	for i, it := range items {
		rs[i] = types.Reading{
			ID:          it.ID,
			MotorID:     it.MotorID,
			Temperature: it.Temperature,
			Vibration:   it.Vibration,
			RPM:         it.RPM,
			Load:        it.Load,
			Timestamp:   it.Timestamp,
			Status:      it.Status,
		}
	}
	return rs, nil
}

// Count pages through a COUNT query over the motor partition.
func (s *Dynamo) Count(ctx context.Context) (int, error) {
	var (
		total int64
		start map[string]*dynamodb.AttributeValue
	)
	for {
		out, err := s.client.QueryWithContext(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("motor_id = :m"),
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
				":m": {S: aws.String(s.motorID)},
			},
			Select:            aws.String(dynamodb.SelectCount),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return 0, fmt.Errorf("store: dynamodb count: %w", err)
		}
		total += aws.Int64Value(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return int(total), nil
		}
		start = out.LastEvaluatedKey
	}
}

func (s *Dynamo) Close() error { return nil }
