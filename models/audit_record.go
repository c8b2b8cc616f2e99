package models

import "time"

// AuditRecord is one durable entry in the append-only decision trail.
// SequenceNumber is monotonically increasing per process and never reused,
// even across restarts (the store persists the high-water mark).
type AuditRecord struct {
	SequenceNumber uint64    `json:"sequence_number"`
	Operation      Operation `json:"operation"`
	Decision       Decision  `json:"decision"`
	RecordedAt     time.Time `json:"recorded_at"`
}
