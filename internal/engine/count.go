package engine

import (
	"io/fs"
	"path/filepath"
)

// CountTargets estimates how many paths Scan will record for opts, so a
// progress bar can be sized up front. It applies the same pruning as Scan
// but never opens files.
func CountTargets(opts Options) int {
	root, err := resolveRoot(opts.Root)
	if err != nil {
		return 0
	}
	matcher := buildMatcher(root, opts)
	count := 0
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != root {
				count++
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && matcher.MatchDir(relPath(root, p)) {
				return filepath.SkipDir
			}
			return nil
		}
		count++
		return nil
	})
	return count
}
