package policystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/trustplane/trustplane/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConflictError reports a pattern that appears in both the allow and deny
// lists for the same operation type. Replace rejects such documents and
// keeps the previous version active.
type ConflictError struct {
	Field   string
	Pattern string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("policy conflict: pattern %q appears in both auto_approve and manual_approve for %s", e.Pattern, e.Field)
}

// Store holds the active TrustPolicy. The document is copy-on-write: every
// reader gets an immutable snapshot, and Replace swaps the pointer under a
// lock after validation, so in-flight decisions keep whichever version
// they captured.
type Store struct {
	mu      sync.RWMutex
	current *models.TrustPolicy
	logger  *zap.Logger
}

// NewStore creates a Store seeded with the given policy
func NewStore(initial *models.TrustPolicy, logger *zap.Logger) (*Store, error) {
	if initial == nil {
		initial = models.DefaultTrustPolicy()
	}
	if err := Validate(initial); err != nil {
		return nil, err
	}
	return &Store{
		current: initial.Clone(),
		logger:  logger,
	}, nil
}

// Current returns the active policy snapshot. Callers must treat it as
// read-only.
func (s *Store) Current() *models.TrustPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace validates and atomically installs the next policy version.
// Readers never observe a partially-updated document. On a conflict the
// previous version stays active and a *ConflictError names the field.
func (s *Store) Replace(next *models.TrustPolicy) error {
	if next == nil {
		return fmt.Errorf("policy document is nil")
	}
	if err := Validate(next); err != nil {
		return err
	}

	installed := next.Clone()
	installed.UpdatedAt = time.Now()

	s.mu.Lock()
	if installed.Version <= s.current.Version {
		installed.Version = s.current.Version + 1
	}
	previous := s.current
	s.current = installed
	s.mu.Unlock()

	s.logger.Info("policy replaced",
		zap.Int("previous_version", previous.Version),
		zap.Int("new_version", installed.Version))
	return nil
}

// Validate checks the cross-list invariant: within one version, an
// identical pattern string must not appear in both auto_approve and
// manual_approve for the same operation type.
func Validate(p *models.TrustPolicy) error {
	deny := make(map[string]bool)
	for _, pattern := range p.ManualApprove.DenyPatterns() {
		deny[pattern] = true
	}

	for _, pattern := range p.AutoApprove.GitOperations {
		if deny[pattern] {
			return &ConflictError{Field: "git_operations", Pattern: pattern}
		}
	}
	for _, pattern := range p.AutoApprove.FileOperations {
		if deny[pattern] {
			return &ConflictError{Field: "file_operations", Pattern: pattern}
		}
	}
	for tool, patterns := range p.AutoApprove.CLIOperations {
		for _, pattern := range patterns {
			if deny[pattern] {
				return &ConflictError{Field: "cli_operations." + tool, Pattern: pattern}
			}
		}
	}

	if p.Security.MaxAutoApprovalPerHour < 0 {
		return fmt.Errorf("security.max_auto_approval_per_hour must not be negative")
	}
	return nil
}

// LoadFile parses a policy document from a YAML or JSON file
func LoadFile(path string) (*models.TrustPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	policy := &models.TrustPolicy{}
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, policy); err != nil {
			return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, policy); err != nil {
			return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
		}
	}

	return policy, nil
}
