package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/models"
)

// PostgreSQLStorage implements Storage on a single PostgreSQL table keyed by
// lead id.
type PostgreSQLStorage struct {
	db    *sql.DB
	table string
}

// NewPostgreSQLStorage opens the database and ensures the table exists
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	storage := NewPostgreSQLStorageWithDB(db, cfg.TableName)
	if err := storage.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// NewPostgreSQLStorageWithDB wraps an open database handle.
func NewPostgreSQLStorageWithDB(db *sql.DB, table string) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		db:    db,
		table: pq.QuoteIdentifier(table),
	}
}

func (p *PostgreSQLStorage) ensureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			salesforce_lead_id  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			checkr_candidate_id TEXT NOT NULL,
			checkr_report_id    TEXT NOT NULL DEFAULT '',
			checkr_status       TEXT NOT NULL
		)`, p.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_candidate ON %s (checkr_candidate_id)`, p.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_report ON %s (checkr_report_id)`, p.table),
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return nil
}

// GetByLeadID reads the record stored under leadID
func (p *PostgreSQLStorage) GetByLeadID(ctx context.Context, leadID string) (*models.WorkflowRecord, error) {
	return p.findOne(ctx, "salesforce_lead_id", leadID)
}

// GetByCandidateID finds the record holding candidateID
func (p *PostgreSQLStorage) GetByCandidateID(ctx context.Context, candidateID string) (*models.WorkflowRecord, error) {
	return p.findOne(ctx, "checkr_candidate_id", candidateID)
}

// GetByReportID finds the record holding reportID
func (p *PostgreSQLStorage) GetByReportID(ctx context.Context, reportID string) (*models.WorkflowRecord, error) {
	return p.findOne(ctx, "checkr_report_id", reportID)
}

// findOne returns the first row whose column equals value. Rows without a
// report store an empty string, so an empty value is never looked up.
func (p *PostgreSQLStorage) findOne(ctx context.Context, column, value string) (*models.WorkflowRecord, error) {
	if value == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT name, salesforce_lead_id, checkr_candidate_id, checkr_report_id, checkr_status
		FROM %s WHERE %s = $1 LIMIT 1`, p.table, column)

	var record models.WorkflowRecord
	err := p.db.QueryRowContext(ctx, query, value).Scan(
		&record.Name, &record.LeadID, &record.CandidateID, &record.ReportID, &record.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record by %s: %w", column, err)
	}

	return &record, nil
}

// CreateRecord inserts a new record unless one already exists for the lead
func (p *PostgreSQLStorage) CreateRecord(ctx context.Context, record models.WorkflowRecord) error {
	query := fmt.Sprintf(`INSERT INTO %s (salesforce_lead_id, name, checkr_candidate_id, checkr_report_id, checkr_status)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (salesforce_lead_id) DO NOTHING`, p.table)

	result, err := p.db.ExecContext(ctx, query,
		record.LeadID, record.Name, record.CandidateID, record.ReportID, record.Status)
	if err != nil {
		return fmt.Errorf("failed to store record for lead %s: %w", record.LeadID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows == 0 {
		return ErrRecordExists
	}

	return nil
}

// SetReportCreated records reportID against the lead
func (p *PostgreSQLStorage) SetReportCreated(ctx context.Context, leadID, reportID string) error {
	query := fmt.Sprintf(`UPDATE %s SET checkr_status = $1, checkr_report_id = $2 WHERE salesforce_lead_id = $3`, p.table)
	return p.update(ctx, leadID, query, models.StatusReportCreated, reportID, leadID)
}

// SetReportCompleted marks the lead's report completed
func (p *PostgreSQLStorage) SetReportCompleted(ctx context.Context, leadID string) error {
	query := fmt.Sprintf(`UPDATE %s SET checkr_status = $1 WHERE salesforce_lead_id = $2`, p.table)
	return p.update(ctx, leadID, query, models.StatusReportCompleted, leadID)
}

func (p *PostgreSQLStorage) update(ctx context.Context, leadID, query string, args ...interface{}) error {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update record for lead %s: %w", leadID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// Close closes the database handle
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}
