package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionOutcome is the approval verdict for an operation
type DecisionOutcome string

const (
	DecisionAuto   DecisionOutcome = "auto"
	DecisionManual DecisionOutcome = "manual"
)

// Decision reason strings. These are part of the audit contract and must
// stay stable.
const (
	ReasonExplicitlyDenied  = "explicitly denied"
	ReasonRateLimitExceeded = "rate limit exceeded"
	ReasonDangerous         = "operation carries risk flags"
	ReasonAllowListed       = "matched allow rule"
	ReasonNoMatchingRule    = "no matching allow rule"
)

// Decision is the engine's verdict for one Operation. Created once per
// Operation, immutable thereafter.
type Decision struct {
	OperationID uuid.UUID       `json:"operation_id"`
	Outcome     DecisionOutcome `json:"outcome"`
	MatchedRule string          `json:"matched_rule,omitempty"`
	RateLimited bool            `json:"rate_limited"`
	Reason      string          `json:"reason"`
	DecidedAt   time.Time       `json:"decided_at"`

	// Classification recorded alongside the outcome so the audit trail
	// is self-explaining.
	OperationType OperationType `json:"operation_type"`
	RiskFlags     []RiskFlag    `json:"risk_flags,omitempty"`
}

// IsAuto reports whether the operation may proceed without confirmation
func (d *Decision) IsAuto() bool {
	return d.Outcome == DecisionAuto
}
