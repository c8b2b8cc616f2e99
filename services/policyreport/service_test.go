package policyreport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustplane/trustplane/models"
	"go.uber.org/zap/zaptest"
)

func TestService_GenerateDetectsAddedAndRemovedPatterns(t *testing.T) {
	service := NewService(zaptest.NewLogger(t))

	previous := models.DefaultTrustPolicy()
	next := previous.Clone()
	next.AutoApprove.GitOperations = append(next.AutoApprove.GitOperations, "stash")
	next.ManualApprove.DeleteOperations = []string{"branch -D", "--delete"} // "rm" removed

	report := service.Generate(previous, next, "admin")

	var added, removed *models.PolicyChange
	for i := range report.Changes {
		change := &report.Changes[i]
		if change.ChangeType == models.ChangeTypeAdded && change.NewValue == "stash" {
			added = change
		}
		if change.ChangeType == models.ChangeTypeRemoved && change.PreviousValue == "rm" {
			removed = change
		}
	}

	require.NotNil(t, added)
	assert.Equal(t, "auto_approve", added.Section)
	assert.Equal(t, "git_operations", added.Field)

	require.NotNil(t, removed)
	assert.Equal(t, "manual_approve", removed.Section)
	assert.Equal(t, "delete_operations", removed.Field)
}

func TestService_GenerateDetectsScalarChange(t *testing.T) {
	service := NewService(zaptest.NewLogger(t))

	previous := models.DefaultTrustPolicy()
	next := previous.Clone()
	next.Security.MaxAutoApprovalPerHour = 100

	report := service.Generate(previous, next, "admin")
	require.Len(t, report.Changes, 1)

	change := report.Changes[0]
	assert.Equal(t, "security", change.Section)
	assert.Equal(t, "max_auto_approval_per_hour", change.Field)
	assert.Equal(t, models.ChangeTypeModified, change.ChangeType)
	assert.Equal(t, 50, change.PreviousValue)
	assert.Equal(t, 100, change.NewValue)
}

func TestService_ImpactLooseningRaisesRisk(t *testing.T) {
	service := NewService(zaptest.NewLogger(t))

	previous := models.DefaultTrustPolicy()
	next := previous.Clone()
	next.AutoApprove.GitOperations = append(next.AutoApprove.GitOperations, "stash", "rebase", "cherry-pick")
	next.ManualApprove.ForceOperations = []string{"push --force"} // two deny patterns dropped

	report := service.Generate(previous, next, "admin")
	analysis := report.ImpactAnalysis

	assert.Equal(t, "heuristic_estimate", analysis.Method)
	assert.Equal(t, 5, analysis.LoosenedFields)
	assert.Equal(t, 0, analysis.TightenedFields)
	assert.Equal(t, "high", analysis.SecurityRiskLevel)
	assert.InDelta(t, 10.0, analysis.EstimatedAutoApprovalDelta, 0.0001)
}

func TestService_ImpactTighteningIsLowRisk(t *testing.T) {
	service := NewService(zaptest.NewLogger(t))

	previous := models.DefaultTrustPolicy()
	next := previous.Clone()
	next.ManualApprove.ProductionImpact = append(next.ManualApprove.ProductionImpact, "--staging")
	next.AutoApprove.GitOperations = next.AutoApprove.GitOperations[:5]

	report := service.Generate(previous, next, "admin")
	analysis := report.ImpactAnalysis

	assert.Equal(t, "low", analysis.SecurityRiskLevel)
	assert.Zero(t, analysis.LoosenedFields)
	assert.Equal(t, 6, analysis.TightenedFields)
	assert.True(t, analysis.EstimatedAutoApprovalDelta < 0)
}

func TestService_NoChanges(t *testing.T) {
	service := NewService(zaptest.NewLogger(t))

	policy := models.DefaultTrustPolicy()
	report := service.Generate(policy, policy.Clone(), "admin")

	assert.Empty(t, report.Changes)
	assert.Equal(t, "low", report.ImpactAnalysis.SecurityRiskLevel)
	assert.Equal(t, "no policy changes", report.ImpactAnalysis.Summary)
}

func TestService_DiffOrderIsStable(t *testing.T) {
	service := NewService(zaptest.NewLogger(t))

	previous := models.DefaultTrustPolicy()
	next := previous.Clone()
	next.AutoApprove.GitOperations = append(next.AutoApprove.GitOperations, "stash", "rebase")
	next.Security.MaxAutoApprovalPerHour = 10

	first := service.Generate(previous, next, "admin")
	second := service.Generate(previous, next, "admin")

	require.Equal(t, len(first.Changes), len(second.Changes))
	for i := range first.Changes {
		assert.Equal(t, first.Changes[i], second.Changes[i])
	}
	// Scalar changes trail the pattern lists.
	last := first.Changes[len(first.Changes)-1]
	assert.Equal(t, "security", last.Section)
}

func TestService_RenderMarkdown(t *testing.T) {
	service := NewService(zaptest.NewLogger(t))

	previous := models.DefaultTrustPolicy()
	next := previous.Clone()
	next.AutoApprove.GitOperations = append(next.AutoApprove.GitOperations, "stash")

	report := service.Generate(previous, next, "admin")
	rendered := service.RenderMarkdown(report)

	assert.Contains(t, rendered, "# Policy Change Report")
	assert.Contains(t, rendered, report.ID.String())
	assert.Contains(t, rendered, "`stash`")
	assert.Contains(t, rendered, "git_operations")
	assert.Contains(t, rendered, "Security risk:")
}
