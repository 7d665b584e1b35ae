package core

import (
	"context"

	"github.com/devaudit/dat/internal/diff"
	"github.com/devaudit/dat/internal/engine"
	"github.com/devaudit/dat/internal/report"
	"github.com/devaudit/dat/internal/rules"
	"github.com/devaudit/dat/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type (
	Config        = engine.Config
	Options       = engine.Options
	Report        = report.Report
	Rule          = rules.Rule
	Policy        = rules.Policy
	RuleViolation = types.RuleViolation
	FileRecord    = types.FileRecord
	Severity      = types.Severity
	DiffResult    = diff.Result
)

// ErrInvalidRoot is returned by Run when the scan root cannot be used.
var ErrInvalidRoot = engine.ErrInvalidRoot

// Run scans cfg.Root, evaluates the policy and returns the report.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	return engine.Run(ctx, cfg)
}

// Diff compares two reports by per-path violation counts.
func Diff(previous, current *Report) DiffResult {
	return diff.Diff(previous, current)
}

// DefaultPolicy returns the built-in rule set.
func DefaultPolicy() *Policy { return rules.DefaultPolicy() }

// LoadPolicy reads a schema file and returns the policy it selects for repo.
// A malformed file yields the default policy together with the parse error;
// an unreadable one yields a nil policy and the read error.
func LoadPolicy(path, repo string) (*Policy, error) {
	doc, err := rules.LoadSchema(path)
	if doc == nil {
		return nil, err
	}
	return rules.PolicyFor(doc.Select(repo)), err
}
