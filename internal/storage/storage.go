package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/models"
)

// ErrRecordExists is returned when a workflow record already exists for a lead.
var ErrRecordExists = errors.New("workflow record already exists")

// ErrRecordNotFound is returned by updates addressed to an unknown lead.
var ErrRecordNotFound = errors.New("workflow record not found")

// Storage is the workflow record store. Lookups return a nil record and a
// nil error when nothing matches.
type Storage interface {
	GetByLeadID(ctx context.Context, leadID string) (*models.WorkflowRecord, error)
	GetByCandidateID(ctx context.Context, candidateID string) (*models.WorkflowRecord, error)
	GetByReportID(ctx context.Context, reportID string) (*models.WorkflowRecord, error)
	// CreateRecord inserts a new record, failing with ErrRecordExists when
	// the lead already has one.
	CreateRecord(ctx context.Context, record models.WorkflowRecord) error
	// SetReportCreated stores the report id and moves the lead to "report created".
	SetReportCreated(ctx context.Context, leadID, reportID string) error
	// SetReportCompleted moves the lead to "report completed".
	SetReportCompleted(ctx context.Context, leadID string) error
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "dynamodb":
		return NewDynamoDBStorage(ctx, cfg)
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg)
	case "postgresql":
		return NewPostgreSQLStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
