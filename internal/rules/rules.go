// Package rules holds the literal-pattern policy evaluated against text
// files, the built-in default rule set and external schema loading.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/devaudit/dat/internal/ignore"
	"github.com/devaudit/dat/internal/types"
)

// DocSkip lists the documentation globs the built-in rules never look at.
var DocSkip = []string{"*.md", "*.markdown", "*.rst", "*.adoc"}

// Rule is one validated policy entry. Patterns are literal substrings.
type Rule struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description" yaml:"description"`
	Patterns    []string       `json:"patterns" yaml:"patterns"`
	Severity    types.Severity `json:"severity" yaml:"severity"`
	Skip        []string       `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// Applies reports whether the rule should look at the file at path.
func (r Rule) Applies(path string) bool {
	return len(r.Skip) == 0 || !ignore.Matches(path, r.Skip)
}

// DefaultRules returns a fresh copy of the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "secrets.api_key",
			Description: "Potential API key exposure",
			Patterns:    []string{"API_KEY", "SECRET_KEY", "x-api-key"},
			Severity:    types.SevHigh,
			Skip:        append([]string(nil), DocSkip...),
		},
		{
			ID:          "credentials.password",
			Description: "Potential password in source",
			Patterns:    []string{"password=", "pwd=", "PASS="},
			Severity:    types.SevCritical,
			Skip:        append([]string(nil), DocSkip...),
		},
		{
			ID:          "compliance.todo",
			Description: "TODO found in tracked files",
			Patterns:    []string{"TODO"},
			Severity:    types.SevLow,
			Skip:        append([]string(nil), DocSkip...),
		},
		{
			ID:          "compliance.merge_conflict",
			Description: "Unresolved merge conflict marker",
			Patterns:    []string{"<<<<<<<", ">>>>>>>"},
			Severity:    types.SevMedium,
			Skip:        append([]string(nil), DocSkip...),
		},
	}
}

// Policy is an ordered rule set. It is safe for concurrent Evaluate calls
// once built.
type Policy struct {
	Rules  []Rule
	filter *prefilter
}

// NewPolicy builds a policy over rules in the given order.
func NewPolicy(rules []Rule) *Policy {
	p := &Policy{Rules: rules}
	var terms []string
	for _, r := range rules {
		terms = append(terms, r.Patterns...)
	}
	p.filter = newPrefilter(terms)
	return p
}

// DefaultPolicy returns the policy made of DefaultRules.
func DefaultPolicy() *Policy { return NewPolicy(DefaultRules()) }

// Evaluate matches every rule that applies to path against lines. Each
// pattern hit on a whitespace-trimmed line yields one violation; line
// numbers are 1-based and output follows line, rule, pattern order.
func (p *Policy) Evaluate(path string, lines []string) []types.RuleViolation {
	if p == nil || len(p.Rules) == 0 || len(lines) == 0 {
		return nil
	}
	active := make([]Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r.Applies(path) {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}
	present := p.filter.present(lines)
	if present != nil {
		active = narrow(active, present)
		if len(active) == 0 {
			return nil
		}
	}

	var out []types.RuleViolation
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, r := range active {
			for _, pat := range r.Patterns {
				if pat != "" && strings.Contains(trimmed, pat) {
					out = append(out, types.RuleViolation{
						RuleID:     r.ID,
						Severity:   r.Severity,
						Message:    fmt.Sprintf("Matched pattern '%s'", pat),
						Path:       path,
						LineNumber: i + 1,
					})
				}
			}
		}
	}
	return out
}

// narrow drops the patterns the prefilter proved absent, and rules left
// without any pattern.
func narrow(rules []Rule, present map[string]bool) []Rule {
	out := rules[:0:0]
	for _, r := range rules {
		var pats []string
		for _, pat := range r.Patterns {
			if present[pat] {
				pats = append(pats, pat)
			}
		}
		if len(pats) == 0 {
			continue
		}
		r.Patterns = pats
		out = append(out, r)
	}
	return out
}

// Find returns the rule with the given id.
func (p *Policy) Find(id string) (Rule, bool) {
	for _, r := range p.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Digest identifies the rule set: ids, severities, patterns and skip globs
// in order, hashed with xxhash.
func (p *Policy) Digest() string {
	h := xxhash.New()
	for _, r := range p.Rules {
		_, _ = h.WriteString(r.ID)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(r.Severity.String())
		for _, pat := range r.Patterns {
			_, _ = h.WriteString("\x01")
			_, _ = h.WriteString(pat)
		}
		for _, s := range r.Skip {
			_, _ = h.WriteString("\x02")
			_, _ = h.WriteString(s)
		}
		_, _ = h.WriteString("\x03")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
