package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// Append ensures pattern is present in the ignore file at root, creating the
// file if missing. It reports whether the file changed.
func Append(root, pattern string) (bool, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false, nil
	}
	if !doublestar.ValidatePattern(normalizePattern(pattern)) {
		return false, fmt.Errorf("malformed pattern %q", pattern)
	}
	p := filepath.Join(root, FileName)
	needNewline := false
	if b, err := os.ReadFile(p); err == nil {
		sc := bufio.NewScanner(strings.NewReader(string(b)))
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) == pattern {
				return false, nil
			}
		}
		needNewline = len(b) > 0 && b[len(b)-1] != '\n'
	} else if !os.IsNotExist(err) {
		return false, err
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if needNewline {
		pattern = "\n" + pattern
	}
	if _, err := f.WriteString(pattern + "\n"); err != nil {
		return false, err
	}
	return true, nil
}
