package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationType classifies what kind of action the agent wants to perform
type OperationType string

const (
	OperationTypeGit     OperationType = "git"
	OperationTypeFile    OperationType = "file"
	OperationTypeCLI     OperationType = "cli"
	OperationTypeScript  OperationType = "script"
	OperationTypeUnknown OperationType = "unknown"
)

// RiskFlag marks an independent risk category detected on an operation.
// An operation may carry several flags at once (e.g. rm -rf is both
// deletion and force).
type RiskFlag string

const (
	RiskFlagDeletion         RiskFlag = "deletion"
	RiskFlagForce            RiskFlag = "force"
	RiskFlagProductionImpact RiskFlag = "production_impact"
)

// OperationContext carries where and on whose behalf the operation runs
type OperationContext struct {
	WorkingDirectory string `json:"working_directory"`
	UserID           string `json:"user_id"`
}

// Operation is a single action the agent wants to perform. Immutable;
// created by the caller for each attempted action.
type Operation struct {
	ID        uuid.UUID        `json:"id"`
	Command   string           `json:"command"`
	Args      []string         `json:"args"`
	Context   OperationContext `json:"context"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewOperation creates a new Operation instance
func NewOperation(command string, args []string) *Operation {
	return &Operation{
		ID:        uuid.New(),
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	}
}

// WithContext sets the operation context
func (o *Operation) WithContext(workingDirectory, userID string) *Operation {
	o.Context = OperationContext{
		WorkingDirectory: workingDirectory,
		UserID:           userID,
	}
	return o
}

// ClassificationResult is the classifier's verdict for one Operation.
// Derived, never persisted standalone; recomputed per Operation.
type ClassificationResult struct {
	OperationType OperationType `json:"operation_type"`
	RiskFlags     []RiskFlag    `json:"risk_flags"`
	IsDangerous   bool          `json:"is_dangerous"`
}

// HasFlag reports whether the classification carries the given risk flag
func (c ClassificationResult) HasFlag(flag RiskFlag) bool {
	for _, f := range c.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}
