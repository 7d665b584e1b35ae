package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/devaudit/dat/internal/logger"
	"github.com/devaudit/dat/internal/types"
	"gopkg.in/yaml.v3"
)

// ErrMalformedSchema marks a policy document that could not be decoded.
var ErrMalformedSchema = errors.New("malformed policy schema")

// metadataKeys are the schema fields copied into report metadata.
var metadataKeys = []string{"owner", "repository", "compliance", "notes"}

// Document is a decoded policy file holding one or more schemas.
type Document struct {
	Schemas []Schema
}

// Schema is one validated policy entry of a Document.
type Schema struct {
	Repos           []string
	Rules           []Rule
	ReplaceDefaults bool
	// Dropped counts rule entries rejected during validation.
	Dropped int

	meta map[string]any
}

// LoadSchema reads and parses the policy file at path. A read failure is
// returned as is; a decode failure yields an empty document wrapped in
// ErrMalformedSchema so callers can continue with the default rules.
func LoadSchema(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ParseSchema(data)
	if err != nil {
		return doc, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseSchema decodes a JSON or YAML policy document. It accepts either
// {schemas: [...]} or a single bare schema object.
func ParseSchema(data []byte) (*Document, error) {
	doc := &Document{}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrMalformedSchema, err)
	}
	if raw == nil {
		return doc, nil
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return doc, fmt.Errorf("%w: top level must be a mapping", ErrMalformedSchema)
	}
	if list, has := top["schemas"]; has {
		entries, ok := list.([]any)
		if !ok {
			return doc, fmt.Errorf("%w: schemas must be a list", ErrMalformedSchema)
		}
		for i, e := range entries {
			m, ok := e.(map[string]any)
			if !ok {
				logger.Warnf("policy: dropping schema #%d: not a mapping", i+1)
				continue
			}
			doc.Schemas = append(doc.Schemas, buildSchema(m))
		}
		return doc, nil
	}
	doc.Schemas = append(doc.Schemas, buildSchema(top))
	return doc, nil
}

// Select returns the first schema whose repos list is empty or names repo.
func (d *Document) Select(repo string) *Schema {
	if d == nil {
		return nil
	}
	for i := range d.Schemas {
		s := &d.Schemas[i]
		if len(s.Repos) == 0 {
			return s
		}
		if repo == "" {
			continue
		}
		for _, r := range s.Repos {
			if r == repo {
				return s
			}
		}
	}
	return nil
}

// Metadata returns the report-relevant subset of the schema fields.
func (s *Schema) Metadata() map[string]any {
	if s == nil || len(s.meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.meta))
	for k, v := range s.meta {
		out[k] = v
	}
	return out
}

// Merge layers the schema rules over base. A schema rule whose id matches a
// base rule replaces it in place; the rest are appended in schema order.
// ReplaceDefaults discards base entirely.
func Merge(base []Rule, s *Schema) []Rule {
	if s == nil {
		return append([]Rule(nil), base...)
	}
	if s.ReplaceDefaults {
		return append([]Rule(nil), s.Rules...)
	}
	out := append([]Rule(nil), base...)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.ID] = i
	}
	for _, r := range s.Rules {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

// PolicyFor builds the policy for a selected schema, or the default policy
// when s is nil.
func PolicyFor(s *Schema) *Policy {
	return NewPolicy(Merge(DefaultRules(), s))
}

func buildSchema(m map[string]any) Schema {
	s := Schema{Repos: stringList(m["repos"])}
	if b, ok := m["replace_defaults"].(bool); ok {
		s.ReplaceDefaults = b
	}
	for _, k := range metadataKeys {
		if v, ok := m[k]; ok {
			if s.meta == nil {
				s.meta = map[string]any{}
			}
			s.meta[k] = v
		}
	}
	entries, _ := m["rules"].([]any)
	seen := map[string]bool{}
	for i, e := range entries {
		r, err := buildRule(e)
		if err == nil && seen[r.ID] {
			err = fmt.Errorf("duplicate id %q", r.ID)
		}
		if err != nil {
			logger.Warnf("policy: dropping rule #%d: %v", i+1, err)
			s.Dropped++
			continue
		}
		seen[r.ID] = true
		s.Rules = append(s.Rules, r)
	}
	return s
}

func buildRule(e any) (Rule, error) {
	m, ok := e.(map[string]any)
	if !ok {
		return Rule{}, errors.New("not a mapping")
	}
	id, _ := m["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return Rule{}, errors.New("missing id")
	}
	patterns := stringList(m["patterns"])
	if len(patterns) == 0 {
		return Rule{}, fmt.Errorf("%s: no patterns", id)
	}
	r := Rule{ID: id, Description: id, Patterns: patterns, Severity: types.SevMedium}
	if d, ok := m["description"].(string); ok && strings.TrimSpace(d) != "" {
		r.Description = d
	}
	if v, has := m["severity"]; has {
		str, _ := v.(string)
		sev, err := types.ParseSeverity(str)
		if err != nil {
			return Rule{}, fmt.Errorf("%s: %w", id, err)
		}
		r.Severity = sev
	}
	r.Skip = stringList(m["skip"])
	return r, nil
}

// stringList accepts a string or a list and keeps the non-empty strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, x := range t {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
