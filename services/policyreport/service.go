// Package policyreport diffs two policy versions and projects the impact
// of the change. The projection is a heuristic over the shape of the diff,
// never a measurement.
package policyreport

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trustplane/trustplane/models"
	"go.uber.org/zap"
)

// allowSections marks which diff sections loosen policy when grown
var allowSections = map[string]bool{
	"auto_approve": true,
}

// Service generates policy change reports
type Service struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a policy change reporter
func NewService(logger *zap.Logger) *Service {
	return &Service{
		logger: logger,
		now:    time.Now,
	}
}

// Generate diffs previous against next and attaches the impact estimate.
// Field order in the report is stable so successive reports are comparable.
func (s *Service) Generate(previous, next *models.TrustPolicy, generatedBy string) *models.PolicyChangeReport {
	changes := diff(previous, next)

	report := &models.PolicyChangeReport{
		ID:             uuid.New(),
		Timestamp:      s.now(),
		PreviousPolicy: previous.Clone(),
		NewPolicy:      next.Clone(),
		Changes:        changes,
		ImpactAnalysis: analyze(changes),
		GeneratedBy:    generatedBy,
	}

	s.logger.Info("policy change report generated",
		zap.String("report_id", report.ID.String()),
		zap.Int("changes", len(changes)),
		zap.String("risk_level", report.ImpactAnalysis.SecurityRiskLevel))
	return report
}

// diff walks both documents field by field in a fixed order
func diff(previous, next *models.TrustPolicy) []models.PolicyChange {
	var changes []models.PolicyChange

	changes = append(changes, diffPatternList("auto_approve", "git_operations",
		previous.AutoApprove.GitOperations, next.AutoApprove.GitOperations)...)
	changes = append(changes, diffPatternList("auto_approve", "file_operations",
		previous.AutoApprove.FileOperations, next.AutoApprove.FileOperations)...)
	changes = append(changes, diffCLIOperations(
		previous.AutoApprove.CLIOperations, next.AutoApprove.CLIOperations)...)
	changes = append(changes, diffPatternList("auto_approve", "script_execution.extensions",
		previous.AutoApprove.ScriptExecution.Extensions, next.AutoApprove.ScriptExecution.Extensions)...)
	changes = append(changes, diffPatternList("auto_approve", "script_execution.allowed_paths",
		previous.AutoApprove.ScriptExecution.AllowedPaths, next.AutoApprove.ScriptExecution.AllowedPaths)...)

	changes = append(changes, diffPatternList("manual_approve", "delete_operations",
		previous.ManualApprove.DeleteOperations, next.ManualApprove.DeleteOperations)...)
	changes = append(changes, diffPatternList("manual_approve", "force_operations",
		previous.ManualApprove.ForceOperations, next.ManualApprove.ForceOperations)...)
	changes = append(changes, diffPatternList("manual_approve", "production_impact",
		previous.ManualApprove.ProductionImpact, next.ManualApprove.ProductionImpact)...)

	changes = append(changes, diffScalars(previous, next)...)
	return changes
}

// diffPatternList reports added and removed patterns within one list
func diffPatternList(section, field string, previous, next []string) []models.PolicyChange {
	prevSet := toSet(previous)
	nextSet := toSet(next)

	var changes []models.PolicyChange
	for _, pattern := range sortedKeys(nextSet) {
		if !prevSet[pattern] {
			changes = append(changes, models.PolicyChange{
				Section:    section,
				Field:      field,
				ChangeType: models.ChangeTypeAdded,
				NewValue:   pattern,
			})
		}
	}
	for _, pattern := range sortedKeys(prevSet) {
		if !nextSet[pattern] {
			changes = append(changes, models.PolicyChange{
				Section:       section,
				Field:         field,
				ChangeType:    models.ChangeTypeRemoved,
				PreviousValue: pattern,
			})
		}
	}
	return changes
}

func diffCLIOperations(previous, next map[string][]string) []models.PolicyChange {
	tools := make(map[string]bool, len(previous)+len(next))
	for tool := range previous {
		tools[tool] = true
	}
	for tool := range next {
		tools[tool] = true
	}

	var changes []models.PolicyChange
	for _, tool := range sortedKeys(tools) {
		changes = append(changes, diffPatternList("auto_approve", "cli_operations."+tool,
			previous[tool], next[tool])...)
	}
	return changes
}

func diffScalars(previous, next *models.TrustPolicy) []models.PolicyChange {
	var changes []models.PolicyChange

	if previous.Security.MaxAutoApprovalPerHour != next.Security.MaxAutoApprovalPerHour {
		changes = append(changes, models.PolicyChange{
			Section:       "security",
			Field:         "max_auto_approval_per_hour",
			ChangeType:    models.ChangeTypeModified,
			PreviousValue: previous.Security.MaxAutoApprovalPerHour,
			NewValue:      next.Security.MaxAutoApprovalPerHour,
		})
	}
	if previous.Security.SuspiciousPatternDetection != next.Security.SuspiciousPatternDetection {
		changes = append(changes, models.PolicyChange{
			Section:       "security",
			Field:         "suspicious_pattern_detection",
			ChangeType:    models.ChangeTypeModified,
			PreviousValue: previous.Security.SuspiciousPatternDetection,
			NewValue:      next.Security.SuspiciousPatternDetection,
		})
	}
	if previous.Security.LogAllOperations != next.Security.LogAllOperations {
		changes = append(changes, models.PolicyChange{
			Section:       "security",
			Field:         "log_all_operations",
			ChangeType:    models.ChangeTypeModified,
			PreviousValue: previous.Security.LogAllOperations,
			NewValue:      next.Security.LogAllOperations,
		})
	}
	return changes
}

// analyze classifies each change as loosening or tightening and derives the
// estimate from the balance.
func analyze(changes []models.PolicyChange) models.ImpactAnalysis {
	loosened, tightened := 0, 0
	for _, change := range changes {
		if loosens(change) {
			loosened++
		} else if tightens(change) {
			tightened++
		}
	}

	analysis := models.ImpactAnalysis{
		Method:          "heuristic_estimate",
		LoosenedFields:  loosened,
		TightenedFields: tightened,
	}

	// Each loosened field is assumed to shift roughly 2% of traffic
	// toward auto approval, and vice versa. Coarse, but directionally
	// useful for review.
	analysis.EstimatedAutoApprovalDelta = float64(loosened-tightened) * 2.0

	switch {
	case loosened >= 5 || (loosened > 0 && tightened == 0 && loosened >= 3):
		analysis.SecurityRiskLevel = "high"
	case loosened > tightened:
		analysis.SecurityRiskLevel = "medium"
	default:
		analysis.SecurityRiskLevel = "low"
	}

	switch {
	case len(changes) == 0:
		analysis.Summary = "no policy changes"
	case loosened > 0 && tightened == 0:
		analysis.Summary = fmt.Sprintf("%d field(s) loosened, review before approving", loosened)
	case tightened > 0 && loosened == 0:
		analysis.Summary = fmt.Sprintf("%d field(s) tightened", tightened)
	default:
		analysis.Summary = fmt.Sprintf("%d field(s) loosened, %d tightened", loosened, tightened)
	}
	return analysis
}

// loosens reports whether a change widens what can auto-approve
func loosens(change models.PolicyChange) bool {
	if allowSections[change.Section] {
		return change.ChangeType == models.ChangeTypeAdded
	}
	if change.Section == "manual_approve" {
		return change.ChangeType == models.ChangeTypeRemoved
	}
	if change.Section == "security" && change.Field == "max_auto_approval_per_hour" {
		prev, okPrev := change.PreviousValue.(int)
		next, okNext := change.NewValue.(int)
		return okPrev && okNext && next > prev
	}
	if change.Section == "security" && change.ChangeType == models.ChangeTypeModified {
		next, ok := change.NewValue.(bool)
		return ok && !next
	}
	return false
}

// tightens reports whether a change narrows what can auto-approve
func tightens(change models.PolicyChange) bool {
	if allowSections[change.Section] {
		return change.ChangeType == models.ChangeTypeRemoved
	}
	if change.Section == "manual_approve" {
		return change.ChangeType == models.ChangeTypeAdded
	}
	if change.Section == "security" && change.Field == "max_auto_approval_per_hour" {
		prev, okPrev := change.PreviousValue.(int)
		next, okNext := change.NewValue.(int)
		return okPrev && okNext && next < prev
	}
	if change.Section == "security" && change.ChangeType == models.ChangeTypeModified {
		next, ok := change.NewValue.(bool)
		return ok && next
	}
	return false
}

// RenderMarkdown formats a report for human review
func (s *Service) RenderMarkdown(report *models.PolicyChangeReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Policy Change Report\n\n")
	fmt.Fprintf(&b, "- **Report ID:** %s\n", report.ID)
	fmt.Fprintf(&b, "- **Generated:** %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Generated by:** %s\n", report.GeneratedBy)
	fmt.Fprintf(&b, "- **Policy version:** %d -> %d\n\n", report.PreviousPolicy.Version, report.NewPolicy.Version)

	fmt.Fprintf(&b, "## Impact (heuristic estimate)\n\n")
	fmt.Fprintf(&b, "- **Security risk:** %s\n", report.ImpactAnalysis.SecurityRiskLevel)
	fmt.Fprintf(&b, "- **Estimated auto-approval delta:** %+.1f%%\n", report.ImpactAnalysis.EstimatedAutoApprovalDelta)
	fmt.Fprintf(&b, "- **Summary:** %s\n\n", report.ImpactAnalysis.Summary)

	fmt.Fprintf(&b, "## Changes\n\n")
	if len(report.Changes) == 0 {
		fmt.Fprintf(&b, "No changes.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "| Section | Field | Change | Previous | New |\n")
	fmt.Fprintf(&b, "|---------|-------|--------|----------|-----|\n")
	for _, change := range report.Changes {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			change.Section, change.Field, change.ChangeType,
			renderValue(change.PreviousValue), renderValue(change.NewValue))
	}
	return b.String()
}

func renderValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("`%v`", v)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
