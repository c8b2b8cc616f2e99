package policystore

import (
	"strings"

	"github.com/trustplane/trustplane/models"
)

// RuleKind identifies how a pattern is evaluated against an operation
type RuleKind string

const (
	// RuleExact matches when the operation's argument vector, joined,
	// equals the pattern.
	RuleExact RuleKind = "exact"

	// RulePrefix matches when the operation's arguments start with the
	// pattern tokens (sub-command position).
	RulePrefix RuleKind = "prefix"

	// RuleArgumentContains matches when the pattern tokens appear as a
	// consecutive sequence anywhere in command + args.
	RuleArgumentContains RuleKind = "contains"
)

// Rule is one parsed policy pattern. The closed set of kinds keeps
// precedence explicit and testable instead of implicit in check order.
type Rule struct {
	Kind    RuleKind
	Pattern string
}

// ParsePattern converts a policy document pattern string into a Rule.
// Explicit "exact:", "prefix:" and "contains:" prefixes are honored;
// otherwise flag-like and multi-token patterns match by containment and
// plain single tokens match the sub-command position.
func ParsePattern(pattern string) Rule {
	switch {
	case strings.HasPrefix(pattern, "exact:"):
		return Rule{Kind: RuleExact, Pattern: strings.TrimPrefix(pattern, "exact:")}
	case strings.HasPrefix(pattern, "prefix:"):
		return Rule{Kind: RulePrefix, Pattern: strings.TrimPrefix(pattern, "prefix:")}
	case strings.HasPrefix(pattern, "contains:"):
		return Rule{Kind: RuleArgumentContains, Pattern: strings.TrimPrefix(pattern, "contains:")}
	}

	if strings.HasPrefix(pattern, "-") || strings.Contains(pattern, " ") {
		return Rule{Kind: RuleArgumentContains, Pattern: pattern}
	}
	return Rule{Kind: RulePrefix, Pattern: pattern}
}

// Matches evaluates the rule against an operation. Matching is
// case-sensitive and token-based: "branch -D" matches
// git branch -D feature but not git branch -Dx.
func (r Rule) Matches(op models.Operation) bool {
	patternTokens := strings.Fields(r.Pattern)
	if len(patternTokens) == 0 {
		return false
	}

	switch r.Kind {
	case RuleExact:
		return tokensEqual(op.Args, patternTokens)
	case RulePrefix:
		// Sub-command position (git status) or the command itself (rm).
		if tokensHavePrefix(op.Args, patternTokens) {
			return true
		}
		full := append([]string{op.Command}, op.Args...)
		return tokensHavePrefix(full, patternTokens)
	case RuleArgumentContains:
		full := append([]string{op.Command}, op.Args...)
		return tokensContainSequence(full, patternTokens)
	default:
		return false
	}
}

// MatchAny parses each pattern and returns the first one matching the
// operation, or "" when none match.
func MatchAny(op models.Operation, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if ParsePattern(pattern).Matches(op) {
			return pattern, true
		}
	}
	return "", false
}

func tokensEqual(tokens, pattern []string) bool {
	if len(tokens) != len(pattern) {
		return false
	}
	for i := range tokens {
		if tokens[i] != pattern[i] {
			return false
		}
	}
	return true
}

func tokensHavePrefix(tokens, pattern []string) bool {
	if len(tokens) < len(pattern) {
		return false
	}
	for i := range pattern {
		if tokens[i] != pattern[i] {
			return false
		}
	}
	return true
}

func tokensContainSequence(tokens, pattern []string) bool {
	if len(pattern) > len(tokens) {
		return false
	}
	for i := 0; i+len(pattern) <= len(tokens); i++ {
		matched := true
		for j := range pattern {
			if tokens[i+j] != pattern[j] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
