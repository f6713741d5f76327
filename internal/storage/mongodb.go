package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/models"
)

// MongoDBStorage implements Storage with one document per lead, the lead id
// being the document _id.
type MongoDBStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBStorage connects to MongoDB and prepares the lookup indexes
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	storage := &MongoDBStorage{
		client:     client,
		collection: client.Database(cfg.MongoDBName).Collection(cfg.TableName),
	}

	if err := storage.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return storage, nil
}

func (m *MongoDBStorage) ensureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: attrCandidateID, Value: 1}}},
		{Keys: bson.D{{Key: attrReportID, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// GetByLeadID reads the record stored under leadID
func (m *MongoDBStorage) GetByLeadID(ctx context.Context, leadID string) (*models.WorkflowRecord, error) {
	return m.findOne(ctx, bson.M{"_id": leadID})
}

// GetByCandidateID finds the record holding candidateID
func (m *MongoDBStorage) GetByCandidateID(ctx context.Context, candidateID string) (*models.WorkflowRecord, error) {
	if candidateID == "" {
		return nil, nil
	}
	return m.findOne(ctx, bson.M{attrCandidateID: candidateID})
}

// GetByReportID finds the record holding reportID. Documents without a
// report carry an empty id, which is never matched.
func (m *MongoDBStorage) GetByReportID(ctx context.Context, reportID string) (*models.WorkflowRecord, error) {
	if reportID == "" {
		return nil, nil
	}
	return m.findOne(ctx, bson.M{attrReportID: reportID})
}

func (m *MongoDBStorage) findOne(ctx context.Context, filter bson.M) (*models.WorkflowRecord, error) {
	var record models.WorkflowRecord
	err := m.collection.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	return &record, nil
}

// CreateRecord inserts a new record unless one already exists for the lead
func (m *MongoDBStorage) CreateRecord(ctx context.Context, record models.WorkflowRecord) error {
	_, err := m.collection.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("failed to store record for lead %s: %w", record.LeadID, err)
	}
	return nil
}

// SetReportCreated records reportID against the lead
func (m *MongoDBStorage) SetReportCreated(ctx context.Context, leadID, reportID string) error {
	return m.update(ctx, leadID, bson.M{
		attrStatus:   models.StatusReportCreated,
		attrReportID: reportID,
	})
}

// SetReportCompleted marks the lead's report completed
func (m *MongoDBStorage) SetReportCompleted(ctx context.Context, leadID string) error {
	return m.update(ctx, leadID, bson.M{attrStatus: models.StatusReportCompleted})
}

func (m *MongoDBStorage) update(ctx context.Context, leadID string, set bson.M) error {
	result, err := m.collection.UpdateByID(ctx, leadID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update record for lead %s: %w", leadID, err)
	}
	if result.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Close disconnects from MongoDB
func (m *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
