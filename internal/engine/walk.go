package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/devaudit/dat/internal/classify"
	"github.com/devaudit/dat/internal/ignore"
	"github.com/devaudit/dat/internal/logger"
	"github.com/devaudit/dat/internal/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrInvalidRoot is returned before any traversal when the scan root is
// missing, not a directory or unreadable.
var ErrInvalidRoot = errors.New("invalid scan root")

// Options controls one walk.
type Options struct {
	Root   string
	Ignore []string
	// Only turns the walk into keep-only mode over these exact paths.
	Only     []string
	MaxLines int
	MaxSize  int64
	Safe     bool
	Deep     bool
	Threads  int
	// MaxFilesPerSecond paces file opens; zero means unlimited.
	MaxFilesPerSecond float64
	DefaultExcludes   bool
	// NoIgnoreFile disables loading <root>/.datignore.
	NoIgnoreFile bool
	// Progress is called once per processed file, serialized.
	Progress func()
}

// accumulator is the single owner of a walk's output.
type accumulator struct {
	mu       sync.Mutex
	res      types.ScanResult
	progress func()
}

func (a *accumulator) add(o outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if o.binary {
		a.res.Stats.Binary++
	}
	switch {
	case o.err != "":
		a.res.Errors = append(a.res.Errors, o.err)
		a.res.Stats.Errors++
	case o.skipped != "":
		a.res.Skipped = append(a.res.Skipped, o.skipped)
		a.res.Stats.Skipped++
	case o.record != nil:
		a.res.Files = append(a.res.Files, *o.record)
		a.res.Stats.Scanned++
	default:
		return
	}
	if a.progress != nil {
		a.progress()
	}
}

func (a *accumulator) finish() types.ScanResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.res
	sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].Path < r.Files[j].Path })
	sort.Strings(r.Skipped)
	sort.Strings(r.Errors)
	if r.Files == nil {
		r.Files = []types.FileRecord{}
	}
	if r.Skipped == nil {
		r.Skipped = []string{}
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
	return r
}

// outcome is the result of processing one path. At most one of err,
// skipped and record is set; none means the path was dropped because the
// walk was cancelled.
type outcome struct {
	record  *types.FileRecord
	skipped string
	err     string
	binary  bool
}

// resolveRoot makes root absolute with symlinks resolved and checks it can
// be listed.
func resolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	// WalkDir does not descend into a symlinked root
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	return abs, nil
}

// buildMatcher combines the root ignore file, explicit patterns, default
// excludes and the keep-only list.
func buildMatcher(root string, opts Options) ignore.Matcher {
	var m ignore.Matcher
	if !opts.NoIgnoreFile {
		loaded, err := ignore.Load(filepath.Join(root, ignore.FileName))
		if err != nil {
			logger.Warnf("reading %s: %v", ignore.FileName, err)
		}
		m = loaded
	}
	extra := append([]string(nil), opts.Ignore...)
	if opts.DefaultExcludes {
		extra = append(extra, DefaultExcludes()...)
	}
	m = m.Merge(extra)
	return m.WithAllow(opts.Only)
}

// Scan walks opts.Root and classifies every file that is not ignored.
// Ignored directories are pruned before descent and never listed. Per-file
// failures are recorded, never fatal. When ctx is cancelled the walk stops
// descending, waits for in-flight files and returns the partial result with
// Interrupted set, together with ctx.Err().
func Scan(ctx context.Context, opts Options) (*types.ScanResult, error) {
	root, err := resolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	matcher := buildMatcher(root, opts)

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	var limiter *rate.Limiter
	if opts.MaxFilesPerSecond > 0 {
		burst := int(opts.MaxFilesPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.MaxFilesPerSecond), burst)
	}

	acc := &accumulator{progress: opts.Progress}
	var g errgroup.Group
	g.SetLimit(threads)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		rel := relPath(root, p)
		if err != nil {
			if p == root {
				return err
			}
			logger.WithField("path", rel).Debugf("walk: %v", err)
			acc.add(outcome{err: describe(rel, err)})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && matcher.MatchDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel) {
			acc.add(outcome{skipped: rel})
			return nil
		}
		g.Go(func() error {
			acc.add(processFile(ctx, p, rel, opts, limiter))
			return nil
		})
		return nil
	})
	_ = g.Wait()

	res := acc.finish()
	res.Root = root
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, walkErr)
	}
	if err := ctx.Err(); err != nil {
		res.Interrupted = true
		return &res, err
	}
	return &res, nil
}

// processFile runs the per-file steps: stat, classify, thresholds, line
// counting, then one full read for the checksum and text encoding.
func processFile(ctx context.Context, abs, rel string, opts Options, limiter *rate.Limiter) outcome {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return outcome{}
		}
	} else if ctx.Err() != nil {
		return outcome{}
	}
	info, err := os.Stat(abs)
	if err != nil {
		logger.WithField("path", rel).Debugf("stat: %v", err)
		return outcome{err: describe(rel, err)}
	}
	if info.IsDir() || !info.Mode().IsRegular() {
		// symlinked directories and special files are never read
		return outcome{skipped: rel}
	}

	cls := classify.Classify(abs)
	gated := opts.Safe && !opts.Deep
	if gated && cls.Binary {
		return outcome{skipped: rel, binary: true}
	}
	if gated && opts.MaxSize > 0 && info.Size() > opts.MaxSize {
		return outcome{skipped: rel}
	}

	lines := 0
	if !cls.Binary {
		limit := opts.MaxLines
		if opts.Deep || limit < 0 {
			limit = 0
		}
		lines = classify.CountLines(abs, limit)
	}
	if gated && opts.MaxLines > 0 && lines > opts.MaxLines {
		return outcome{skipped: rel}
	}
	content, err := classify.Inspect(abs)
	if err != nil {
		logger.WithField("path", rel).Debugf("inspect: %v", err)
		return outcome{err: describe(rel, err), binary: cls.Binary}
	}
	rec := &types.FileRecord{
		Path:     rel,
		Size:     info.Size(),
		Lines:    lines,
		Binary:   cls.Binary,
		MIME:     cls.MIME,
		Checksum: content.Checksum,
	}
	if !cls.Binary {
		rec.Encoding = content.Encoding
	}
	return outcome{
		record: rec,
		binary: cls.Binary,
	}
}

func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}
	return filepath.ToSlash(rel)
}

// describe formats a per-file error as "<relpath>: <message>" without the
// absolute path the OS error carries.
func describe(rel string, err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return rel + ": " + err.Error()
}
