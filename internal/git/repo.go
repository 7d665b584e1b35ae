// Package git reads repository identity for report metadata. Everything is
// best effort: a directory outside any repository yields a name only.
package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Identity names the repository a scan root belongs to.
type Identity struct {
	Name   string `json:"name"`
	Remote string `json:"remote,omitempty"`
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// validateRoot validates and normalizes a repository root path.
func validateRoot(root string) (string, error) {
	if strings.ContainsRune(root, 0) {
		return "", fmt.Errorf("invalid path: contains null byte")
	}
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access path %q: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", root)
	}
	return abs, nil
}

// RepoMetadata returns the identity of the repository containing root. The
// name is the owner/name part of the origin remote when there is one, else
// the base name of the directory.
func RepoMetadata(root string) Identity {
	abs, err := validateRoot(root)
	if err != nil {
		return Identity{}
	}
	id := Identity{Name: filepath.Base(abs)}

	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return id
	}
	if rem, err := repo.Remote("origin"); err == nil {
		if urls := rem.Config().URLs; len(urls) > 0 {
			id.Remote = urls[0]
			if short := shortName(urls[0]); short != "" {
				id.Name = short
			}
		}
	}
	if head, err := repo.Head(); err == nil {
		id.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			id.Branch = head.Name().Short()
		}
	} else if ref, err := repo.Reference(plumbing.HEAD, false); err == nil && ref.Type() == plumbing.SymbolicReference {
		// unborn branch: HEAD points at a ref with no commits yet
		id.Branch = ref.Target().Short()
	}
	return id
}

// shortName reduces a remote URL to owner/name.
func shortName(url string) string {
	s := strings.TrimSuffix(strings.TrimSpace(url), "/")
	s = strings.TrimSuffix(s, ".git")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "/"); j >= 0 {
			s = s[j+1:]
		} else {
			return ""
		}
	} else if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return strings.Trim(s, "/")
}
