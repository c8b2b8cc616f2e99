package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType describes how a policy field changed between two versions
type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "added"
	ChangeTypeRemoved  ChangeType = "removed"
	ChangeTypeModified ChangeType = "modified"
)

// PolicyChange is one field-level difference between two policy versions
type PolicyChange struct {
	Section       string     `json:"section"`
	Field         string     `json:"field"`
	ChangeType    ChangeType `json:"change_type"`
	PreviousValue any        `json:"previous_value,omitempty"`
	NewValue      any        `json:"new_value,omitempty"`
}

// ImpactAnalysis is a heuristic projection of what a policy change will do.
// It is an estimate derived from the shape of the changes, not a
// measurement; it must never be confused with AggregatedMetrics.
type ImpactAnalysis struct {
	Method                     string  `json:"method"` // always "heuristic_estimate"
	EstimatedAutoApprovalDelta float64 `json:"estimated_auto_approval_delta_pct"`
	SecurityRiskLevel          string  `json:"security_risk_level"` // low, medium, high
	Summary                    string  `json:"summary"`
	LoosenedFields             int     `json:"loosened_fields"`
	TightenedFields            int     `json:"tightened_fields"`
}

// PolicyChangeReport is generated when an administrator replaces the
// policy document, or on demand as a dry-run diff.
type PolicyChangeReport struct {
	ID             uuid.UUID      `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	PreviousPolicy *TrustPolicy   `json:"previous_policy"`
	NewPolicy      *TrustPolicy   `json:"new_policy"`
	Changes        []PolicyChange `json:"changes"`
	ImpactAnalysis ImpactAnalysis `json:"impact_analysis"`
	GeneratedBy    string         `json:"generated_by"`
}
