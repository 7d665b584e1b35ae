package dat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/devaudit/dat/internal/audit"
	"github.com/devaudit/dat/internal/cache"
	"github.com/devaudit/dat/internal/config"
	"github.com/devaudit/dat/internal/diff"
	"github.com/devaudit/dat/internal/engine"
	"github.com/devaudit/dat/internal/git"
	"github.com/devaudit/dat/internal/logger"
	"github.com/devaudit/dat/internal/report"
	"github.com/devaudit/dat/internal/rules"
	"github.com/devaudit/dat/internal/update"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type scanFlags struct {
	ignore           []string
	only             []string
	maxLines         int
	maxSize          int64
	safe             bool
	deep             bool
	threads          int
	rate             float64
	defaultExcludes  bool
	policy           string
	repo             string
	json             bool
	sarif            bool
	outputs          []string
	diffPath         string
	diffLast         bool
	failOn           string
	failOnRegression bool
	noAudit          bool
	noProgress       bool
	limit            int
}

func newScanCmd(g *globalFlags) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a directory tree and report policy violations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runScan(cmd, g, f, path)
		},
	}
	cmd.Flags().StringArrayVarP(&f.ignore, "ignore", "i", nil, "glob pattern to ignore (repeatable)")
	cmd.Flags().StringArrayVar(&f.only, "only", nil, "scan only these paths relative to the root (repeatable)")
	cmd.Flags().IntVar(&f.maxLines, "max-lines", 1000, "in safe mode skip files with more lines (0 = no limit)")
	cmd.Flags().Int64Var(&f.maxSize, "max-size", 10<<20, "in safe mode skip files larger than this many bytes (0 = no limit)")
	cmd.Flags().BoolVar(&f.safe, "safe", true, "skip binary, oversized and overlong files")
	cmd.Flags().BoolVar(&f.deep, "deep", false, "lift safe-mode limits and count lines in full")
	cmd.Flags().IntVar(&f.threads, "threads", 0, "worker count (0 = GOMAXPROCS)")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "max files opened per second (0 = unlimited)")
	cmd.Flags().BoolVar(&f.defaultExcludes, "default-excludes", true, "apply built-in exclude list (.git, node_modules, dist, etc.)")
	cmd.Flags().StringVar(&f.policy, "policy", "", "policy schema file (JSON or YAML)")
	cmd.Flags().StringVar(&f.repo, "repo", "", "repository name used to select a schema (default: detected)")
	cmd.Flags().BoolVar(&f.json, "json", false, "emit the report as JSON on stdout")
	cmd.Flags().BoolVar(&f.sarif, "sarif", false, "emit SARIF 2.1.0 on stdout")
	cmd.Flags().StringArrayVarP(&f.outputs, "output", "o", nil, "write the report to a file: .json, .jsonl or .sarif (repeatable)")
	cmd.Flags().StringVar(&f.diffPath, "diff", "", "compare with a previously saved report")
	cmd.Flags().BoolVar(&f.diffLast, "diff-last", false, "compare with the last scan of this root")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "none", "exit 1 on violations at or above: info|low|medium|high|critical|none")
	cmd.Flags().BoolVar(&f.failOnRegression, "fail-on-regression", false, "exit 1 when the diff reports a regression")
	cmd.Flags().BoolVar(&f.noAudit, "no-audit", false, "do not append this scan to the audit log")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "show at most this many violations in the table (0 = all)")
	cmd.MarkFlagsMutuallyExclusive("json", "sarif")
	cmd.MarkFlagsMutuallyExclusive("diff", "diff-last")
	return cmd
}

func runScan(cmd *cobra.Command, g *globalFlags, f *scanFlags, path string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	changed := cmd.Flags().Changed

	// Load configs: CLI > local > global
	var gcfg, lcfg config.FileConfig
	if c, err := config.LoadGlobal(); err == nil {
		gcfg = c
	} else if !errors.Is(err, config.ErrNotFound) {
		logger.Warnf("global config: %v", err)
	}
	if c, err := config.LoadLocal(abs); err == nil {
		lcfg = c
	} else if !errors.Is(err, config.ErrNotFound) {
		logger.Warnf("local config: %v", err)
	}
	fc := gcfg.Merge(lcfg)
	if fc.LogLevel != nil && !cmd.Flags().Changed("log-level") {
		logger.Init(*fc.LogLevel)
	}

	machine := f.json || f.sarif
	noColor := colorDisabled(g.noColor, fc.NoColor, out)
	failOn := pick(changed("fail-on"), f.failOn, fc.FailOn)
	if _, err := report.ShouldFail(nil, failOn); err != nil {
		return err
	}

	opts := engine.Options{
		Root:              abs,
		Ignore:            append(append([]string(nil), fc.Ignore...), f.ignore...),
		Only:              f.only,
		MaxLines:          pick(changed("max-lines"), f.maxLines, fc.MaxLines),
		MaxSize:           pick(changed("max-size"), f.maxSize, fc.MaxSize),
		Safe:              pick(changed("safe"), f.safe, fc.Safe),
		Deep:              pick(changed("deep"), f.deep, fc.Deep),
		Threads:           pick(changed("threads"), f.threads, fc.Threads),
		MaxFilesPerSecond: pick(changed("rate"), f.rate, fc.Rate),
		DefaultExcludes:   pick(changed("default-excludes"), f.defaultExcludes, fc.DefaultExcludes),
	}
	cfg := engine.Config{Options: opts, ToolVersion: version}

	policyPath := f.policy
	if !changed("policy") && fc.Policy != nil {
		policyPath = *fc.Policy
		if lcfg.Policy != nil && !filepath.IsAbs(policyPath) {
			policyPath = filepath.Join(abs, policyPath)
		}
	}
	if policyPath != "" {
		repo := pick(changed("repo"), f.repo, fc.Repo)
		if repo == "" {
			repo = git.RepoMetadata(abs).Name
		}
		policy, meta, err := loadPolicy(errOut, policyPath, repo)
		if err != nil {
			return err
		}
		cfg.Policy = policy
		cfg.Schema = meta
		cfg.SchemaSource = policyPath
	}

	if !machine {
		if !g.noUpdateCheck {
			if latest, newer, _ := update.Check(version, false); newer && latest != "" {
				fmt.Fprintf(errOut, "(new version available: v%s)  run 'dat update' to upgrade\n", latest)
			}
		}
		fmt.Fprintf(errOut, "Scanning %s...\n", abs)
	}

	// previous report must be read before this run replaces it
	var previous *report.Report
	switch {
	case f.diffPath != "":
		if previous, err = report.LoadReport(f.diffPath); err != nil {
			return fmt.Errorf("load previous report: %w", err)
		}
	case f.diffLast:
		if previous, err = cache.LoadReport(abs); err != nil {
			fmt.Fprintln(errOut, "no previous scan of this root; skipping diff")
			previous = nil
		}
	}

	var bar *progressbar.ProgressBar
	if !machine && !f.noProgress && isTerminal(errOut) {
		bar = newProgressBar(errOut, engine.CountTargets(cfg.Options))
		cfg.Progress = func() { _ = bar.Add(1) }
	}

	start := time.Now()
	rep, err := engine.Run(cmd.Context(), cfg)
	if bar != nil {
		_ = bar.Finish()
	}
	if rep == nil {
		return err
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		fmt.Fprintln(errOut, "scan interrupted; reporting partial results")
	}
	duration := time.Since(start)
	logger.WithField("fingerprint", rep.Fingerprint).Infof("scanned %d file(s) in %s", rep.Stats.Scanned, duration.Round(time.Millisecond))

	switch {
	case f.sarif:
		if err := report.WriteSARIF(out, rep); err != nil {
			return fmt.Errorf("sarif error: %w", err)
		}
	case f.json:
		if err := report.WriteJSON(out, rep); err != nil {
			return err
		}
	default:
		if err := report.PrintTable(out, rep, report.PrintOptions{NoColor: noColor, Duration: duration, Limit: f.limit}); err != nil {
			return err
		}
	}

	var artifacts []string
	for _, p := range f.outputs {
		if err := report.WriteFile(p, rep); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		artifacts = append(artifacts, p)
		if !machine {
			fmt.Fprintln(errOut, "Report written:", p)
		}
	}

	regressions := 0
	if previous != nil {
		res := diff.Diff(previous, rep)
		regressions = len(res.Regressions)
		w := out
		if machine {
			w = errOut
		}
		fmt.Fprintln(w)
		if err := diff.Print(w, res); err != nil {
			return err
		}
	}

	if !rep.Interrupted {
		if err := cache.SaveReport(abs, rep); err != nil {
			logger.Warnf("saving last report: %v", err)
		}
	}
	if !f.noAudit {
		logScan(rep, duration, regressions, artifacts)
	}

	if fail, _ := report.ShouldFail(rep.Violations, failOn); fail {
		return &exitError{code: 1}
	}
	if f.failOnRegression && regressions > 0 {
		return &exitError{code: 1, msg: fmt.Sprintf("%d file(s) regressed", regressions)}
	}
	return nil
}

// loadPolicy reads the schema file at path and builds the policy selected
// for repo. An unreadable file is an error; a malformed one falls back to the
// built-in rules with a warning.
func loadPolicy(errOut io.Writer, path, repo string) (*rules.Policy, map[string]any, error) {
	doc, err := rules.LoadSchema(path)
	if doc == nil {
		return nil, nil, fmt.Errorf("load policy: %w", err)
	}
	if err != nil {
		fmt.Fprintf(errOut, "warning: %v; using built-in rules\n", err)
	}
	schema := doc.Select(repo)
	if schema == nil && len(doc.Schemas) > 0 {
		logger.Warnf("no schema in %s applies to %q; using built-in rules", path, repo)
	}
	if schema != nil && schema.Dropped > 0 {
		fmt.Fprintf(errOut, "warning: %d malformed rule(s) dropped from %s\n", schema.Dropped, path)
	}
	return rules.PolicyFor(schema), schema.Metadata(), nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Scanning files"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionFullWidth(),
	)
}

func logScan(rep *report.Report, d time.Duration, regressions int, artifacts []string) {
	dir, err := config.Dir()
	if err != nil {
		logger.Debugf("audit log: %v", err)
		return
	}
	rec := audit.CreateScanRecord(rep, d, regressions, artifacts)
	if err := audit.NewAuditLog(dir).LogScan(rec); err != nil {
		logger.Errorf("audit log: %v", err)
	}
}
