package rules

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

const (
	prefilterMinTerms = 8
	prefilterMinBytes = 4 * 1024
)

// prefilter runs one multi-pattern pass over a whole file to find which
// patterns occur at all. Small policies and small files skip it.
type prefilter struct {
	terms   []string
	matcher *ahocorasick.Matcher
}

func newPrefilter(terms []string) *prefilter {
	seen := make(map[string]bool, len(terms))
	var uniq []string
	for _, t := range terms {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		uniq = append(uniq, t)
	}
	f := &prefilter{terms: uniq}
	if len(uniq) >= prefilterMinTerms {
		f.matcher = ahocorasick.NewStringMatcher(uniq)
	}
	return f
}

// present returns the set of patterns found in lines, or nil when the
// prefilter does not apply and every pattern must be tried.
func (f *prefilter) present(lines []string) map[string]bool {
	if f == nil || f.matcher == nil {
		return nil
	}
	size := 0
	for _, l := range lines {
		size += len(l) + 1
	}
	if size < prefilterMinBytes {
		return nil
	}
	content := []byte(strings.Join(lines, "\n"))
	hits := f.matcher.MatchThreadSafe(content)
	out := make(map[string]bool, len(hits))
	for _, idx := range hits {
		if idx >= 0 && idx < len(f.terms) {
			out[f.terms[idx]] = true
		}
	}
	return out
}
