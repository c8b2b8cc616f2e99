// Package file implements the audit store as one append-only JSONL file
// per day. Each line is one AuditRecord; a record is acknowledged only
// after the write has been fsynced.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/repositories"
	"go.uber.org/zap"
)

const (
	filePrefix   = "audit-"
	fileSuffix   = ".jsonl"
	sequenceFile = "sequence"
)

// AuditStore implements repositories.AuditStore on a local directory
type AuditStore struct {
	dir    string
	logger *zap.Logger

	mu          sync.Mutex
	current     *os.File
	currentDay  string
	highestSeen uint64
}

var _ repositories.AuditStore = (*AuditStore)(nil)

// NewAuditStore opens (or creates) the audit directory and recovers the
// sequence high-water mark from existing files and the sequence sidecar.
func NewAuditStore(dir string, logger *zap.Logger) (*AuditStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	store := &AuditStore{
		dir:    dir,
		logger: logger,
	}

	highest, err := store.recoverHighWaterMark()
	if err != nil {
		return nil, err
	}
	store.highestSeen = highest

	logger.Info("audit store opened",
		zap.String("dir", dir),
		zap.Uint64("sequence_high_water_mark", highest))
	return store, nil
}

// Append writes the record as one JSON line and fsyncs before returning.
// The caller (the audit logger) serializes appends; the store's own mutex
// additionally guards file rotation.
func (s *AuditStore) Append(ctx context.Context, record *models.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileForDay(record.RecordedAt)
	if err != nil {
		return err
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit record: %w", err)
	}

	if record.SequenceNumber > s.highestSeen {
		s.highestSeen = record.SequenceNumber
	}
	return nil
}

// LastSequence returns the recovered sequence high-water mark
func (s *AuditStore) LastSequence(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestSeen, nil
}

// Query reads records with RecordedAt in [from, to), ordered by sequence
// number. Day files sort lexically by date and lines within a file are in
// append order, so the scan order is already sequence order.
func (s *AuditStore) Query(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error) {
	files, err := s.listDayFiles()
	if err != nil {
		return nil, err
	}

	var records []*models.AuditRecord
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.scanFile(path, func(record *models.AuditRecord) {
			if !record.RecordedAt.Before(from) && record.RecordedAt.Before(to) {
				records = append(records, record)
			}
		}); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// PurgeOlderThan deletes whole day files whose date is strictly before the
// cutoff's day. The high-water mark is persisted to the sidecar first so a
// purge can never cause sequence reuse after a restart.
func (s *AuditStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistHighWaterMark(); err != nil {
		return 0, err
	}

	files, err := s.listDayFiles()
	if err != nil {
		return 0, err
	}

	cutoffDay := cutoff.Format("2006-01-02")
	removed := 0
	for _, path := range files {
		day := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), filePrefix), fileSuffix)
		if day >= cutoffDay {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove audit file %s: %w", path, err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("purged audit files",
			zap.Int("files_removed", removed),
			zap.String("cutoff_day", cutoffDay))
	}
	return removed, nil
}

// Close flushes and closes the current day file
func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistHighWaterMark(); err != nil {
		s.logger.Error("failed to persist sequence high-water mark", zap.Error(err))
	}
	if s.current != nil {
		err := s.current.Close()
		s.current = nil
		return err
	}
	return nil
}

// fileForDay returns the open handle for the record's day, rotating when
// the day has changed. Caller holds mu.
func (s *AuditStore) fileForDay(at time.Time) (*os.File, error) {
	day := at.Format("2006-01-02")
	if s.current != nil && day == s.currentDay {
		return s.current, nil
	}

	if s.current != nil {
		if err := s.current.Close(); err != nil {
			s.logger.Warn("failed to close rotated audit file", zap.Error(err))
		}
	}

	path := filepath.Join(s.dir, filePrefix+day+fileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	s.current = f
	s.currentDay = day
	return f, nil
}

func (s *AuditStore) listDayFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(s.dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (s *AuditStore) scanFile(path string, visit func(*models.AuditRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open audit file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		record := &models.AuditRecord{}
		if err := json.Unmarshal(line, record); err != nil {
			// A torn final line from a crash mid-write is skipped, not
			// fatal; everything durable before it is intact.
			s.logger.Warn("skipping unreadable audit line",
				zap.String("file", path),
				zap.Error(err))
			continue
		}
		visit(record)
	}
	return scanner.Err()
}

// recoverHighWaterMark scans all day files and the sidecar for the highest
// sequence number ever persisted.
func (s *AuditStore) recoverHighWaterMark() (uint64, error) {
	var highest uint64

	if data, err := os.ReadFile(filepath.Join(s.dir, sequenceFile)); err == nil {
		if v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64); err == nil {
			highest = v
		}
	}

	files, err := s.listDayFiles()
	if err != nil {
		return 0, err
	}
	for _, path := range files {
		if err := s.scanFile(path, func(record *models.AuditRecord) {
			if record.SequenceNumber > highest {
				highest = record.SequenceNumber
			}
		}); err != nil {
			return 0, err
		}
	}
	return highest, nil
}

// persistHighWaterMark writes the sidecar sequence file. Caller holds mu.
func (s *AuditStore) persistHighWaterMark() error {
	path := filepath.Join(s.dir, sequenceFile)
	data := []byte(strconv.FormatUint(s.highestSeen, 10))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sequence file: %w", err)
	}
	return nil
}
