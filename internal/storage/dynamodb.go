package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/models"
)

const (
	attrLeadID      = "salesforce_lead_ID"
	attrCandidateID = "checkr_candidate_ID"
	attrReportID    = "checkr_report_ID"
	attrStatus      = "checkr_status"

	candidateIndex = "checkr_candidate_ID-index"
	reportIndex    = "checkr_report_ID-index"
)

// DynamoDBStorage implements Storage using an AWS DynamoDB table keyed by
// lead id, with global secondary indexes on candidate and report ids.
type DynamoDBStorage struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(ctx context.Context, cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := NewDynamoDBStorageWithClient(dynamodb.New(sess), cfg.TableName)

	// Deployed tables are provisioned outside the service
	if cfg.Endpoint != "" {
		if err := storage.ensureTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure table exists: %w", err)
		}
	}

	return storage, nil
}

// NewDynamoDBStorageWithClient wraps an existing DynamoDB client.
func NewDynamoDBStorageWithClient(client dynamodbiface.DynamoDBAPI, tableName string) *DynamoDBStorage {
	return &DynamoDBStorage{
		client:    client,
		tableName: tableName,
	}
}

// ensureTable creates the DynamoDB table and its indexes if it doesn't exist
func (d *DynamoDBStorage) ensureTable(ctx context.Context) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		return nil
	}

	index := func(name, attr string) *dynamodb.GlobalSecondaryIndex {
		return &dynamodb.GlobalSecondaryIndex{
			IndexName: aws.String(name),
			KeySchema: []*dynamodb.KeySchemaElement{
				{AttributeName: aws.String(attr), KeyType: aws.String(dynamodb.KeyTypeHash)},
			},
			Projection: &dynamodb.Projection{ProjectionType: aws.String(dynamodb.ProjectionTypeAll)},
		}
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(attrLeadID), KeyType: aws.String(dynamodb.KeyTypeHash)},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String(attrLeadID), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
			{AttributeName: aws.String(attrCandidateID), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
			{AttributeName: aws.String(attrReportID), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			index(candidateIndex, attrCandidateID),
			index(reportIndex, attrReportID),
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	}

	if _, err := d.client.CreateTableWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return d.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
}

// GetByLeadID reads the record stored under leadID
func (d *DynamoDBStorage) GetByLeadID(ctx context.Context, leadID string) (*models.WorkflowRecord, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			attrLeadID: {S: aws.String(leadID)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get record for lead %s: %w", leadID, err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var record models.WorkflowRecord
	if err := dynamodbattribute.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}

// GetByCandidateID finds the record holding candidateID
func (d *DynamoDBStorage) GetByCandidateID(ctx context.Context, candidateID string) (*models.WorkflowRecord, error) {
	return d.findByAttribute(ctx, candidateIndex, attrCandidateID, candidateID)
}

// GetByReportID finds the record holding reportID
func (d *DynamoDBStorage) GetByReportID(ctx context.Context, reportID string) (*models.WorkflowRecord, error) {
	return d.findByAttribute(ctx, reportIndex, attrReportID, reportID)
}

// findByAttribute queries a secondary index. An empty id never matches: the
// report id attribute is absent until a report is created.
func (d *DynamoDBStorage) findByAttribute(ctx context.Context, indexName, attr, value string) (*models.WorkflowRecord, error) {
	if value == "" {
		return nil, nil
	}

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(attr).Equal(expression.Value(value))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := d.client.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int64(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", indexName, err)
	}

	if len(result.Items) == 0 {
		return nil, nil
	}

	var record models.WorkflowRecord
	if err := dynamodbattribute.UnmarshalMap(result.Items[0], &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}

// CreateRecord stores a new record unless one already exists for the lead
func (d *DynamoDBStorage) CreateRecord(ctx context.Context, record models.WorkflowRecord) error {
	item, err := dynamodbattribute.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for lead %s: %w", record.LeadID, err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(attrLeadID))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition expression: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.tableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailed(err) {
		return ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("failed to store record for lead %s: %w", record.LeadID, err)
	}

	return nil
}

// SetReportCreated records reportID against the lead
func (d *DynamoDBStorage) SetReportCreated(ctx context.Context, leadID, reportID string) error {
	update := expression.
		Set(expression.Name(attrStatus), expression.Value(models.StatusReportCreated)).
		Set(expression.Name(attrReportID), expression.Value(reportID))
	return d.update(ctx, leadID, update)
}

// SetReportCompleted marks the lead's report completed
func (d *DynamoDBStorage) SetReportCompleted(ctx context.Context, leadID string) error {
	update := expression.Set(expression.Name(attrStatus), expression.Value(models.StatusReportCompleted))
	return d.update(ctx, leadID, update)
}

func (d *DynamoDBStorage) update(ctx context.Context, leadID string, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(attrLeadID))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	_, err = d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			attrLeadID: {S: aws.String(leadID)},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              aws.String(dynamodb.ReturnValueUpdatedNew),
	})
	if isConditionFailed(err) {
		return ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update record for lead %s: %w", leadID, err)
	}

	return nil
}

func isConditionFailed(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
