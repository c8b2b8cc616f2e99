package models

import "time"

// TrustPolicy is the versioned rule document consulted on every decision.
// Instances are treated as immutable once published; replacement swaps the
// whole document (copy-on-write), never mutates in place.
type TrustPolicy struct {
	Version       int                 `json:"version" yaml:"version"`
	AutoApprove   AutoApprovePolicy   `json:"auto_approve" yaml:"auto_approve"`
	ManualApprove ManualApprovePolicy `json:"manual_approve" yaml:"manual_approve"`
	Security      SecurityPolicy      `json:"security" yaml:"security"`
	UpdatedAt     time.Time           `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// AutoApprovePolicy holds the allow-listed operation patterns
type AutoApprovePolicy struct {
	GitOperations   []string              `json:"git_operations" yaml:"git_operations"`
	FileOperations  []string              `json:"file_operations" yaml:"file_operations"`
	CLIOperations   map[string][]string   `json:"cli_operations" yaml:"cli_operations"` // per-tool pattern lists
	ScriptExecution ScriptExecutionPolicy `json:"script_execution" yaml:"script_execution"`
}

// ScriptExecutionPolicy constrains which scripts are allow-listed
type ScriptExecutionPolicy struct {
	Extensions   []string `json:"extensions" yaml:"extensions"`
	AllowedPaths []string `json:"allowed_paths" yaml:"allowed_paths"`
}

// ManualApprovePolicy holds the deny-listed operation patterns. A match
// here always forces manual approval, regardless of any allow match.
type ManualApprovePolicy struct {
	DeleteOperations []string `json:"delete_operations" yaml:"delete_operations"`
	ForceOperations  []string `json:"force_operations" yaml:"force_operations"`
	ProductionImpact []string `json:"production_impact" yaml:"production_impact"`
}

// SecurityPolicy holds the global security limits
type SecurityPolicy struct {
	MaxAutoApprovalPerHour     int  `json:"max_auto_approval_per_hour" yaml:"max_auto_approval_per_hour"`
	SuspiciousPatternDetection bool `json:"suspicious_pattern_detection" yaml:"suspicious_pattern_detection"`
	LogAllOperations           bool `json:"log_all_operations" yaml:"log_all_operations"`
}

// Clone returns a deep copy of the policy document
func (p *TrustPolicy) Clone() *TrustPolicy {
	if p == nil {
		return nil
	}
	next := *p
	next.AutoApprove.GitOperations = append([]string(nil), p.AutoApprove.GitOperations...)
	next.AutoApprove.FileOperations = append([]string(nil), p.AutoApprove.FileOperations...)
	next.AutoApprove.ScriptExecution.Extensions = append([]string(nil), p.AutoApprove.ScriptExecution.Extensions...)
	next.AutoApprove.ScriptExecution.AllowedPaths = append([]string(nil), p.AutoApprove.ScriptExecution.AllowedPaths...)
	if p.AutoApprove.CLIOperations != nil {
		next.AutoApprove.CLIOperations = make(map[string][]string, len(p.AutoApprove.CLIOperations))
		for tool, patterns := range p.AutoApprove.CLIOperations {
			next.AutoApprove.CLIOperations[tool] = append([]string(nil), patterns...)
		}
	}
	next.ManualApprove.DeleteOperations = append([]string(nil), p.ManualApprove.DeleteOperations...)
	next.ManualApprove.ForceOperations = append([]string(nil), p.ManualApprove.ForceOperations...)
	next.ManualApprove.ProductionImpact = append([]string(nil), p.ManualApprove.ProductionImpact...)
	return &next
}

// DenyPatterns returns all manual-approve patterns in one list
func (p *ManualApprovePolicy) DenyPatterns() []string {
	out := make([]string, 0, len(p.DeleteOperations)+len(p.ForceOperations)+len(p.ProductionImpact))
	out = append(out, p.DeleteOperations...)
	out = append(out, p.ForceOperations...)
	out = append(out, p.ProductionImpact...)
	return out
}

// DefaultTrustPolicy returns a conservative starting policy: read-only git
// and common build tooling auto-approved, destructive patterns denied.
func DefaultTrustPolicy() *TrustPolicy {
	return &TrustPolicy{
		Version: 1,
		AutoApprove: AutoApprovePolicy{
			GitOperations:  []string{"status", "log", "diff", "add", "commit", "push", "pull", "fetch", "branch", "checkout"},
			FileOperations: []string{"mkdir", "touch", "cp"},
			CLIOperations: map[string][]string{
				"npm":  {"install", "ci", "test", "run build", "run lint"},
				"yarn": {"install", "test"},
				"pnpm": {"install", "test"},
			},
			ScriptExecution: ScriptExecutionPolicy{
				Extensions:   []string{".sh", ".js", ".ts", ".py"},
				AllowedPaths: []string{"scripts/", "tools/"},
			},
		},
		ManualApprove: ManualApprovePolicy{
			DeleteOperations: []string{"branch -D", "rm", "--delete"},
			ForceOperations:  []string{"push --force", "reset --hard", "-rf"},
			ProductionImpact: []string{"--prod", "deploy", "env rm"},
		},
		Security: SecurityPolicy{
			MaxAutoApprovalPerHour:     50,
			SuspiciousPatternDetection: true,
			LogAllOperations:           true,
		},
	}
}
