// Package ignore decides whether a path is excluded from a scan. Patterns are
// globs (`*`, `?`, `[...]`, `**`) tested against both the base name and the
// slash-separated relative path. A path that fails the segment-aware match is
// tried once more with shell fnmatch rules, where `*` and `?` also match '/',
// so `src/*.py` matches `src/sub/a.py`.
package ignore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/devaudit/dat/internal/logger"
)

// FileName is the per-root ignore file picked up by the scanner.
const FileName = ".datignore"

// Matches reports whether p matches any pattern by base name or by full path.
// Empty and malformed patterns never match.
func Matches(p string, patterns []string) bool {
	p = toSlash(p)
	base := path.Base(p)
	for _, g := range patterns {
		if g == "" {
			continue
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, p); ok {
			return true
		}
		if fnmatch(g, p) {
			return true
		}
	}
	return false
}

// fnmatch matches p against g with '/' treated as an ordinary character.
func fnmatch(g, p string) bool {
	g = strings.ReplaceAll(g, "[!", "[^")
	ok, err := path.Match(strings.ReplaceAll(g, "/", "\x00"), strings.ReplaceAll(p, "/", "\x00"))
	return err == nil && ok
}

// Matcher is a validated, reusable set of ignore patterns with an optional
// keep-only allowlist layered on top.
type Matcher struct {
	patterns []string
	allow    map[string]bool
	allowDir map[string]bool
}

// New validates patterns and drops the empty or malformed ones.
func New(patterns []string) Matcher {
	var m Matcher
	for _, p := range patterns {
		p = normalizePattern(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			logger.Warnf("ignoring malformed ignore pattern %q", p)
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Load reads an ignore file: one glob per line, '#' comments and blank lines
// skipped. A missing file yields an empty matcher and no error.
func Load(file string) (Matcher, error) {
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Matcher{}, nil
		}
		return Matcher{}, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return Matcher{}, err
	}
	return New(lines), nil
}

// Merge returns a matcher holding the patterns of m followed by extra.
func (m Matcher) Merge(extra []string) Matcher {
	out := New(append(append([]string(nil), m.patterns...), extra...))
	out.allow, out.allowDir = m.allow, m.allowDir
	return out
}

// WithAllow turns m into a keep-only matcher: every file not listed in paths
// is ignored, and directories that cannot contain a listed path are pruned.
// Regular patterns still apply on top.
func (m Matcher) WithAllow(paths []string) Matcher {
	if len(paths) == 0 {
		return m
	}
	out := Matcher{patterns: m.patterns, allow: map[string]bool{}, allowDir: map[string]bool{}}
	for _, p := range paths {
		p = strings.TrimPrefix(path.Clean(toSlash(p)), "./")
		if p == "" || p == "." {
			continue
		}
		out.allow[p] = true
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			out.allowDir[dir] = true
		}
	}
	return out
}

// Patterns returns the validated pattern list.
func (m Matcher) Patterns() []string { return append([]string(nil), m.patterns...) }

// Match reports whether the file at rel is excluded. A file inside an
// ignored directory is excluded too.
func (m Matcher) Match(rel string) bool {
	rel = toSlash(rel)
	if m.allow != nil && !m.allow[rel] {
		return true
	}
	if Matches(rel, m.patterns) {
		return true
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if Matches(dir, m.patterns) {
			return true
		}
	}
	return false
}

// MatchDir reports whether the directory at rel should be pruned.
func (m Matcher) MatchDir(rel string) bool {
	rel = toSlash(rel)
	if m.allowDir != nil && !m.allowDir[rel] {
		return true
	}
	return Matches(rel, m.patterns)
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(toSlash(p))
	p = strings.TrimPrefix(p, "./")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func toSlash(p string) string { return strings.ReplaceAll(p, "\\", "/") }
