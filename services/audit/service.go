// Package audit assigns sequence numbers to decisions and persists them
// before the decision is released to the caller. A failed append is the
// one storage failure that crosses the decision boundary: the engine
// treats it as fail-closed.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/repositories"
	"go.uber.org/zap"
)

// Error marks an audit persistence failure. Callers use errors.As to
// distinguish it from validation errors and fail closed.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("audit append failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Service is the single writer to the audit store. All appends funnel
// through one mutex so sequence numbers are assigned and persisted in the
// same order, with no gaps: the counter only advances after the store has
// acknowledged the record.
type Service struct {
	store  repositories.AuditStore
	logger *zap.Logger

	mu  sync.Mutex
	seq uint64

	now func() time.Time
}

// NewService creates the audit service, seeding the sequence counter from
// the store's persisted high-water mark so numbers are never reused after
// a restart.
func NewService(ctx context.Context, store repositories.AuditStore, logger *zap.Logger) (*Service, error) {
	last, err := store.LastSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover audit sequence: %w", err)
	}

	logger.Info("audit service started", zap.Uint64("last_sequence", last))

	return &Service{
		store:  store,
		logger: logger,
		seq:    last,
		now:    time.Now,
	}, nil
}

// Append persists one decision record and returns it with its assigned
// sequence number. On failure the counter is not advanced, so the next
// successful append takes the same slot and the trail stays gapless.
func (s *Service) Append(ctx context.Context, op models.Operation, decision models.Decision) (*models.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &models.AuditRecord{
		SequenceNumber: s.seq + 1,
		Operation:      op,
		Decision:       decision,
		RecordedAt:     s.now(),
	}

	if err := s.store.Append(ctx, record); err != nil {
		s.logger.Error("failed to append audit record",
			zap.Uint64("sequence_number", record.SequenceNumber),
			zap.String("command", op.Command),
			zap.Error(err))
		return nil, &Error{Err: err}
	}

	s.seq = record.SequenceNumber
	return record, nil
}

// Query returns the audit records recorded in [from, to), in sequence order
func (s *Service) Query(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error) {
	return s.store.Query(ctx, from, to)
}

// StartRetention purges records older than the retention period once per
// interval until the context is cancelled. A retention of zero disables
// purging.
func (s *Service) StartRetention(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := s.now().Add(-retention)
				removed, err := s.store.PurgeOlderThan(ctx, cutoff)
				if err != nil {
					s.logger.Error("audit retention purge failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					s.logger.Info("audit retention purge completed",
						zap.Int("removed", removed),
						zap.Time("cutoff", cutoff))
				}
			}
		}
	}()
}

// Close closes the underlying store
func (s *Service) Close() error {
	return s.store.Close()
}
