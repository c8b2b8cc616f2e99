package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/repositories"
	"go.uber.org/zap"
)

// AuditStore implements repositories.AuditStore on PostgreSQL. Operation
// and decision are stored as JSONB so the record survives model evolution
// without schema churn.
type AuditStore struct {
	db     *DB
	logger *zap.Logger
}

var _ repositories.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates a postgres-backed audit store
func NewAuditStore(db *DB, logger *zap.Logger) *AuditStore {
	return &AuditStore{
		db:     db,
		logger: logger,
	}
}

// Append inserts one audit record. The sequence number is the primary key,
// so a duplicate insert (which would mean sequence reuse) fails loudly.
func (s *AuditStore) Append(ctx context.Context, record *models.AuditRecord) error {
	operation, err := json.Marshal(record.Operation)
	if err != nil {
		return fmt.Errorf("failed to encode operation: %w", err)
	}
	decision, err := json.Marshal(record.Decision)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}

	query := `
		INSERT INTO trust_audit_records (sequence_number, operation, decision, recorded_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.db.ExecContext(ctx, query,
		record.SequenceNumber,
		operation,
		decision,
		record.RecordedAt,
	); err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	s.logger.Debug("audit record inserted",
		zap.Uint64("sequence_number", record.SequenceNumber))
	return nil
}

// LastSequence returns the highest persisted sequence number, or 0 when
// the table is empty.
func (s *AuditStore) LastSequence(ctx context.Context) (uint64, error) {
	query := `SELECT COALESCE(MAX(sequence_number), 0) FROM trust_audit_records`

	var last uint64
	if err := s.db.QueryRowContext(ctx, query).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	return last, nil
}

// Query returns records with recorded_at in [from, to), ordered by
// sequence number.
func (s *AuditStore) Query(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error) {
	query := `
		SELECT sequence_number, operation, decision, recorded_at
		FROM trust_audit_records
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY sequence_number ASC
	`

	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		record := &models.AuditRecord{}
		var operation, decision []byte

		if err := rows.Scan(&record.SequenceNumber, &operation, &decision, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if err := json.Unmarshal(operation, &record.Operation); err != nil {
			return nil, fmt.Errorf("failed to decode operation: %w", err)
		}
		if err := json.Unmarshal(decision, &record.Decision); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit record rows: %w", err)
	}
	return records, nil
}

// PurgeOlderThan deletes records recorded before the cutoff. Sequence
// numbers live in the primary key, so purging never resets them: a later
// LastSequence still sees the surviving high-water mark.
func (s *AuditStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	// Keep at least the newest record so the sequence high-water mark
	// survives a purge of an idle store.
	query := `
		DELETE FROM trust_audit_records
		WHERE recorded_at < $1
		  AND sequence_number < (SELECT MAX(sequence_number) FROM trust_audit_records)
	`

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to count purged audit records: %w", err)
	}

	if affected > 0 {
		s.logger.Info("purged audit records",
			zap.Int64("records_removed", affected),
			zap.Time("cutoff", cutoff))
	}
	return int(affected), nil
}

// Close closes the underlying connection pool
func (s *AuditStore) Close() error {
	return s.db.Close()
}
