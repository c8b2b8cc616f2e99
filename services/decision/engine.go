// Package decision implements the approval pipeline. Checks run in a fixed
// order: deny list, rate limit, risk flags, allow list, then the manual
// default. Deny always wins over allow, and anything unmatched falls
// through to manual approval.
package decision

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/services/audit"
	"github.com/trustplane/trustplane/services/classifier"
	"github.com/trustplane/trustplane/services/metrics"
	"github.com/trustplane/trustplane/services/policystore"
	"github.com/trustplane/trustplane/services/ratelimit"
	"go.uber.org/zap"
)

// Engine evaluates operations against the active policy. Every decision is
// audited before it is returned; if the audit append fails the operation
// is not released, auto or otherwise.
type Engine struct {
	classifier *classifier.Classifier
	policies   *policystore.Store
	limiter    *ratelimit.Limiter
	audit      *audit.Service
	metrics    *metrics.Service
	logger     *zap.Logger

	now func() time.Time
}

// NewEngine wires the decision pipeline
func NewEngine(
	policies *policystore.Store,
	limiter *ratelimit.Limiter,
	auditService *audit.Service,
	metricsService *metrics.Service,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		classifier: classifier.New(),
		policies:   policies,
		limiter:    limiter,
		audit:      auditService,
		metrics:    metricsService,
		logger:     logger,
		now:        time.Now,
	}
}

// Decide runs the pipeline for one operation. The returned error is an
// *audit.Error when the decision could not be persisted; callers must then
// withhold the operation entirely.
func (e *Engine) Decide(ctx context.Context, op models.Operation) (*models.Decision, error) {
	started := e.now()

	policy := e.policies.Current()
	classification := e.classifier.Classify(op)
	decision := e.evaluate(op, policy, classification)
	decision.DecidedAt = e.now()

	record, err := e.audit.Append(ctx, op, *decision)
	if err != nil {
		return nil, err
	}

	elapsed := e.now().Sub(started)
	e.metrics.Record(models.MetricsSample{
		Timestamp:        decision.DecidedAt,
		OperationType:    decision.OperationType,
		Decision:         decision.Outcome,
		ProcessingTimeMs: float64(elapsed) / float64(time.Millisecond),
	})

	e.logger.Info("operation decided",
		zap.String("command", op.Command),
		zap.Strings("args", op.Args),
		zap.String("outcome", string(decision.Outcome)),
		zap.String("reason", decision.Reason),
		zap.Uint64("audit_sequence", record.SequenceNumber))
	return decision, nil
}

// evaluate applies the check order against one policy snapshot
func (e *Engine) evaluate(op models.Operation, policy *models.TrustPolicy, classification models.ClassificationResult) *models.Decision {
	decision := &models.Decision{
		OperationID:   op.ID,
		Outcome:       models.DecisionManual,
		OperationType: classification.OperationType,
		RiskFlags:     classification.RiskFlags,
	}

	// Deny list first: an explicit deny beats everything, including the
	// same pattern in an allow list.
	if rule, ok := policystore.MatchAny(op, policy.ManualApprove.DenyPatterns()); ok {
		decision.MatchedRule = rule
		decision.Reason = models.ReasonExplicitlyDenied
		return decision
	}

	limit := policy.Security.MaxAutoApprovalPerHour
	// A non-positive limit disables auto-approval outright; every
	// non-denied operation then reports the rate limit, including ones
	// that also carry risk flags.
	if e.limiter.AtLimit(limit) {
		decision.RateLimited = true
		decision.Reason = models.ReasonRateLimitExceeded
		return decision
	}

	if classification.IsDangerous {
		decision.Reason = models.ReasonDangerous
		return decision
	}

	rule, matched := e.matchAllowList(op, policy, classification.OperationType)
	if !matched {
		decision.Reason = models.ReasonNoMatchingRule
		return decision
	}

	// The allow match only becomes an auto approval if a rate-limit slot
	// is atomically consumed. A losing racer lands here with the window
	// already full.
	if result := e.limiter.TryConsume(limit); !result.Allowed {
		decision.RateLimited = true
		decision.Reason = models.ReasonRateLimitExceeded
		return decision
	}

	decision.Outcome = models.DecisionAuto
	decision.MatchedRule = rule
	decision.Reason = models.ReasonAllowListed
	return decision
}

// matchAllowList finds an allow rule for the operation's type
func (e *Engine) matchAllowList(op models.Operation, policy *models.TrustPolicy, opType models.OperationType) (string, bool) {
	switch opType {
	case models.OperationTypeGit:
		return policystore.MatchAny(op, policy.AutoApprove.GitOperations)
	case models.OperationTypeFile:
		return policystore.MatchAny(op, policy.AutoApprove.FileOperations)
	case models.OperationTypeCLI:
		return policystore.MatchAny(op, policy.AutoApprove.CLIOperations[op.Command])
	case models.OperationTypeScript:
		// Runner-style scripts (npm run build) are governed by the
		// tool's CLI patterns; interpreter scripts by path policy.
		if patterns, ok := policy.AutoApprove.CLIOperations[op.Command]; ok {
			return policystore.MatchAny(op, patterns)
		}
		return e.matchScriptPolicy(op, policy.AutoApprove.ScriptExecution)
	default:
		// Unknown operations never match an allow rule.
		return "", false
	}
}

// matchScriptPolicy allow-lists an interpreter invocation when the script
// has an approved extension and lives under an approved path.
func (e *Engine) matchScriptPolicy(op models.Operation, policy models.ScriptExecutionPolicy) (string, bool) {
	if len(op.Args) == 0 {
		return "", false
	}
	script := path.Clean(op.Args[0])

	extensionOK := false
	for _, ext := range policy.Extensions {
		if strings.HasSuffix(strings.ToLower(script), strings.ToLower(ext)) {
			extensionOK = true
			break
		}
	}
	if !extensionOK {
		return "", false
	}

	for _, allowed := range policy.AllowedPaths {
		prefix := strings.TrimSuffix(allowed, "/")
		if script == prefix || strings.HasPrefix(script, prefix+"/") {
			return allowed, true
		}
	}
	return "", false
}
