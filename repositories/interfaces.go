package repositories

import (
	"context"
	"time"

	"github.com/trustplane/trustplane/models"
)

// AuditStore persists the append-only decision trail. Implementations must
// not acknowledge Append until the record is physically durable, and must
// return records from Query ordered by sequence number.
type AuditStore interface {
	// Append durably persists one audit record
	Append(ctx context.Context, record *models.AuditRecord) error

	// LastSequence returns the persisted sequence high-water mark, or 0
	// when the store is empty. Used to seed the sequence counter after a
	// restart so numbers are never reused.
	LastSequence(ctx context.Context) (uint64, error)

	// Query returns records with RecordedAt in [from, to), ordered by
	// sequence number. The result is finite and the call is restartable.
	Query(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error)

	// PurgeOlderThan removes records older than the cutoff and returns
	// how many were dropped. Retention only: records are never mutated.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases store resources
	Close() error
}
