package engine

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/devaudit/dat/internal/classify"
	"github.com/devaudit/dat/internal/git"
	"github.com/devaudit/dat/internal/logger"
	"github.com/devaudit/dat/internal/report"
	"github.com/devaudit/dat/internal/rules"
	"github.com/devaudit/dat/internal/types"
	"golang.org/x/sync/errgroup"
)

// Config controls a full scan: the walk, the policy and the provenance
// recorded in the report metadata.
type Config struct {
	Options
	// Policy defaults to rules.DefaultPolicy when nil.
	Policy       *rules.Policy
	ToolVersion  string
	Schema       map[string]any
	SchemaSource string
}

// Evaluate applies policy to every text file of res on a bounded worker
// pool. Binary records are never read. Files that can no longer be read are
// logged and contribute nothing. The result is in canonical report order.
func Evaluate(ctx context.Context, res *types.ScanResult, policy *rules.Policy, threads int) ([]types.RuleViolation, error) {
	if res == nil || policy == nil || len(policy.Rules) == 0 {
		return nil, ctx.Err()
	}
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	var (
		mu  sync.Mutex
		out []types.RuleViolation
	)
	var g errgroup.Group
	g.SetLimit(threads)
	for _, rec := range res.Files {
		if rec.Binary {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		rec := rec
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			abs := filepath.Join(res.Root, filepath.FromSlash(rec.Path))
			// the encoding was already recorded by the walker
			text, _, err := classify.ReadText(abs)
			if err != nil {
				logger.WithField("path", rec.Path).Debugf("evaluate: %v", err)
				return nil
			}
			vs := policy.Evaluate(rec.Path, classify.SplitLines(text))
			if len(vs) == 0 {
				return nil
			}
			mu.Lock()
			out = append(out, vs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	report.SortViolations(out)
	return out, ctx.Err()
}

// Run scans cfg.Root, evaluates the policy and builds the report. An invalid
// root yields no report. A cancelled run yields the partial report, marked
// interrupted, together with the context error.
func Run(ctx context.Context, cfg Config) (*report.Report, error) {
	res, err := Scan(ctx, cfg.Options)
	if res == nil {
		return nil, err
	}
	policy := cfg.Policy
	if policy == nil {
		policy = rules.DefaultPolicy()
	}
	var violations []types.RuleViolation
	if err == nil {
		violations, err = Evaluate(ctx, res, policy, cfg.Threads)
		if err != nil {
			res.Interrupted = true
		}
	}
	id := git.RepoMetadata(res.Root)
	meta := report.Metadata{
		ToolVersion:  cfg.ToolVersion,
		GeneratedAt:  time.Now().UTC(),
		Repository:   &id,
		PolicyDigest: policy.Digest(),
		Schema:       cfg.Schema,
		SchemaSource: cfg.SchemaSource,
	}
	return report.Build(res, violations, meta), err
}
