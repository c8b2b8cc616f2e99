package classifier

import (
	"strings"

	"github.com/trustplane/trustplane/models"
)

// fileCommands are commands that mutate the filesystem directly
var fileCommands = map[string]bool{
	"rm":    true,
	"touch": true,
	"mkdir": true,
	"cp":    true,
	"mv":    true,
}

// cliCommands are package-manager and deploy tools
var cliCommands = map[string]bool{
	"vercel": true,
	"npm":    true,
	"yarn":   true,
	"pnpm":   true,
}

// scriptInterpreters invoke a script file passed as the first argument
var scriptInterpreters = map[string]bool{
	"node":    true,
	"deno":    true,
	"bun":     true,
	"python":  true,
	"python3": true,
	"ruby":    true,
	"bash":    true,
	"sh":      true,
	"zsh":     true,
}

// scriptExtensions recognized when classifying interpreter invocations
var scriptExtensions = []string{".sh", ".bash", ".js", ".mjs", ".cjs", ".ts", ".py", ".rb"}

// Classifier maps raw operations to a type plus risk flags. It is a pure
// function over the operation with no I/O and no state, and it never
// fails: malformed input classifies as unknown rather than erroring.
type Classifier struct{}

// New creates a new Classifier
func New() *Classifier {
	return &Classifier{}
}

// Classify determines the operation type and risk flags for an operation
func (c *Classifier) Classify(op models.Operation) models.ClassificationResult {
	result := models.ClassificationResult{
		OperationType: c.operationType(op),
		RiskFlags:     c.riskFlags(op),
	}
	result.IsDangerous = len(result.RiskFlags) > 0
	return result
}

// operationType derives the type from the command and its arguments
func (c *Classifier) operationType(op models.Operation) models.OperationType {
	cmd := strings.TrimSpace(op.Command)
	if cmd == "" {
		return models.OperationTypeUnknown
	}

	switch {
	case cmd == "git":
		return models.OperationTypeGit
	case fileCommands[cmd]:
		return models.OperationTypeFile
	case cliCommands[cmd]:
		// A script-runner sub-command reclassifies the tool invocation
		// as a script execution (npm run build, yarn run test, ...).
		for _, arg := range op.Args {
			if arg == "run" {
				return models.OperationTypeScript
			}
		}
		return models.OperationTypeCLI
	case scriptInterpreters[cmd]:
		if len(op.Args) > 0 && hasScriptExtension(op.Args[0]) {
			return models.OperationTypeScript
		}
		return models.OperationTypeUnknown
	default:
		return models.OperationTypeUnknown
	}
}

// riskFlags scans the command and arguments for the three independent risk
// categories. Categories are independent: rm -rf carries both deletion and
// force.
func (c *Classifier) riskFlags(op models.Operation) []models.RiskFlag {
	var flags []models.RiskFlag

	if c.hasDeletionMarker(op) {
		flags = append(flags, models.RiskFlagDeletion)
	}
	if c.hasForceMarker(op) {
		flags = append(flags, models.RiskFlagForce)
	}
	if c.hasProductionMarker(op) {
		flags = append(flags, models.RiskFlagProductionImpact)
	}

	return flags
}

func (c *Classifier) hasDeletionMarker(op models.Operation) bool {
	if op.Command == "rm" {
		return true
	}
	for _, arg := range op.Args {
		if arg == "-D" || arg == "--delete" || arg == "rm" {
			return true
		}
	}
	return false
}

func (c *Classifier) hasForceMarker(op models.Operation) bool {
	for _, arg := range op.Args {
		switch arg {
		case "--force", "-f", "-rf", "-fr", "--hard":
			return true
		}
		// Grouped short flags like -xrf still carry force.
		if isShortFlagGroup(arg) && strings.ContainsRune(arg[1:], 'f') {
			return true
		}
	}
	return false
}

func (c *Classifier) hasProductionMarker(op models.Operation) bool {
	if op.Command == "deploy" {
		return true
	}
	for i, arg := range op.Args {
		if arg == "--prod" || arg == "--production" || arg == "deploy" {
			return true
		}
		// Destructive sub-command pairs such as "env rm".
		if arg == "env" && i+1 < len(op.Args) && op.Args[i+1] == "rm" {
			return true
		}
	}
	return false
}

func hasScriptExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range scriptExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// isShortFlagGroup reports whether arg looks like a grouped short flag
// (-rf) as opposed to a long flag (--force) or a plain argument.
func isShortFlagGroup(arg string) bool {
	return len(arg) > 1 && arg[0] == '-' && arg[1] != '-'
}
