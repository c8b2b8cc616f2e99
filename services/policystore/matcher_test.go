package policystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trustplane/trustplane/models"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		pattern string
		kind    RuleKind
		value   string
	}{
		{"status", RulePrefix, "status"},
		{"branch -D", RuleArgumentContains, "branch -D"},
		{"-rf", RuleArgumentContains, "-rf"},
		{"--delete", RuleArgumentContains, "--delete"},
		{"exact:push origin main", RuleExact, "push origin main"},
		{"prefix:run build", RulePrefix, "run build"},
		{"contains:deploy", RuleArgumentContains, "deploy"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			rule := ParsePattern(tt.pattern)
			assert.Equal(t, tt.kind, rule.Kind)
			assert.Equal(t, tt.value, rule.Pattern)
		})
	}
}

func TestRule_Matches(t *testing.T) {
	op := func(command string, args ...string) models.Operation {
		return models.Operation{Command: command, Args: args}
	}

	tests := []struct {
		name    string
		rule    Rule
		op      models.Operation
		matches bool
	}{
		{
			name:    "prefix matches sub-command",
			rule:    Rule{Kind: RulePrefix, Pattern: "status"},
			op:      op("git", "status"),
			matches: true,
		},
		{
			name:    "prefix matches with trailing args",
			rule:    Rule{Kind: RulePrefix, Pattern: "commit"},
			op:      op("git", "commit", "-m", "msg"),
			matches: true,
		},
		{
			name:    "prefix matches the bare command",
			rule:    Rule{Kind: RulePrefix, Pattern: "rm"},
			op:      op("rm", "file.txt"),
			matches: true,
		},
		{
			name:    "prefix does not match mid-args",
			rule:    Rule{Kind: RulePrefix, Pattern: "status"},
			op:      op("git", "log", "status"),
			matches: false,
		},
		{
			name:    "contains matches flag sequence",
			rule:    Rule{Kind: RuleArgumentContains, Pattern: "branch -D"},
			op:      op("git", "branch", "-D", "feature"),
			matches: true,
		},
		{
			name:    "contains is token based not substring",
			rule:    Rule{Kind: RuleArgumentContains, Pattern: "-D"},
			op:      op("git", "branch", "-Dx"),
			matches: false,
		},
		{
			name:    "contains matches the command token",
			rule:    Rule{Kind: RuleArgumentContains, Pattern: "rm"},
			op:      op("rm", "file.txt"),
			matches: true,
		},
		{
			name:    "exact matches whole arg vector",
			rule:    Rule{Kind: RuleExact, Pattern: "push origin main"},
			op:      op("git", "push", "origin", "main"),
			matches: true,
		},
		{
			name:    "exact rejects extra args",
			rule:    Rule{Kind: RuleExact, Pattern: "push origin main"},
			op:      op("git", "push", "origin", "main", "--tags"),
			matches: false,
		},
		{
			name:    "empty pattern never matches",
			rule:    Rule{Kind: RulePrefix, Pattern: ""},
			op:      op("git", "status"),
			matches: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.rule.Matches(tt.op))
		})
	}
}

func TestMatchAny(t *testing.T) {
	op := models.Operation{Command: "git", Args: []string{"push", "--force"}}

	rule, ok := MatchAny(op, []string{"status", "push --force"})
	assert.True(t, ok)
	assert.Equal(t, "push --force", rule)

	_, ok = MatchAny(op, []string{"status", "commit"})
	assert.False(t, ok)

	_, ok = MatchAny(op, nil)
	assert.False(t, ok)
}
