// Package cache keeps per-root scan state outside the scanned tree: the last
// report, used by `scan --diff-last`.
package cache

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// StateDir returns where state for root is stored: a directory under the
// user cache dir keyed by a hash of the absolute, symlink-resolved root.
// Nothing is ever written inside the tree being scanned, .git included.
func StateDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "dat", strconv.FormatUint(xxhash.Sum64String(abs), 16)), nil
}
