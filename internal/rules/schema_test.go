package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devaudit/dat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchema_BareJSON(t *testing.T) {
	doc, err := ParseSchema([]byte(`{
    "owner": "platform",
    "compliance": ["soc2"],
    "internal": "hidden",
    "rules": [
      {"id": "custom.token", "patterns": "TOKEN", "severity": "critical"},
      {"id": "custom.multi", "patterns": ["A", "B"]}
    ]
  }`))
	require.NoError(t, err)
	require.Len(t, doc.Schemas, 1)
	s := doc.Select("anything")
	require.NotNil(t, s)

	require.Len(t, s.Rules, 2)
	assert.Equal(t, Rule{ID: "custom.token", Description: "custom.token", Patterns: []string{"TOKEN"}, Severity: types.SevCritical}, s.Rules[0])
	assert.Equal(t, types.SevMedium, s.Rules[1].Severity, "severity defaults to medium")

	meta := s.Metadata()
	assert.Equal(t, "platform", meta["owner"])
	assert.Equal(t, []any{"soc2"}, meta["compliance"])
	assert.NotContains(t, meta, "internal")
	assert.NotContains(t, meta, "rules")
}

func TestParseSchema_YAMLSchemasAndSelect(t *testing.T) {
	doc, err := ParseSchema([]byte(`
schemas:
  - repos: [billing]
    rules:
      - id: billing.card
        patterns: [CARD_NUMBER]
        skip: ["*_test.go"]
  - repos: []
    notes: fallback
    rules:
      - id: any.rule
        patterns: X
`))
	require.NoError(t, err)
	require.Len(t, doc.Schemas, 2)

	s := doc.Select("billing")
	require.NotNil(t, s)
	assert.Equal(t, "billing.card", s.Rules[0].ID)
	assert.Equal(t, []string{"*_test.go"}, s.Rules[0].Skip)

	s = doc.Select("other")
	require.NotNil(t, s)
	assert.Equal(t, "fallback", s.Metadata()["notes"])

	s = doc.Select("")
	require.NotNil(t, s)
	assert.Equal(t, "any.rule", s.Rules[0].ID)
}

func TestSelect_NoMatch(t *testing.T) {
	doc, err := ParseSchema([]byte(`{"schemas":[{"repos":["a"],"rules":[]}]}`))
	require.NoError(t, err)
	assert.Nil(t, doc.Select("b"))
	assert.Nil(t, doc.Select(""))

	var nilDoc *Document
	assert.Nil(t, nilDoc.Select("a"))
}

func TestParseSchema_DropsMalformedRules(t *testing.T) {
	doc, err := ParseSchema([]byte(`{"rules": [
    {"id": "", "patterns": ["x"]},
    {"id": "no.patterns"},
    {"id": "bad.severity", "patterns": ["x"], "severity": "urgent"},
    "not a mapping",
    {"id": "ok", "patterns": ["x", 5, ""]},
    {"id": "ok", "patterns": ["dup"]}
  ]}`))
	require.NoError(t, err)
	s := doc.Select("")
	require.NotNil(t, s)
	require.Len(t, s.Rules, 1)
	assert.Equal(t, []string{"x"}, s.Rules[0].Patterns)
	assert.Equal(t, 5, s.Dropped)
}

func TestParseSchema_Malformed(t *testing.T) {
	for _, in := range []string{`{"rules": [`, `- just\n- a list`, `{"schemas": "nope"}`} {
		doc, err := ParseSchema([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedSchema, in)
		require.NotNil(t, doc)
		assert.Empty(t, doc.Schemas)
		assert.Nil(t, doc.Select(""))
	}
}

func TestParseSchema_Empty(t *testing.T) {
	doc, err := ParseSchema(nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Schemas)
}

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "policy.yml")
	require.NoError(t, os.WriteFile(p, []byte("rules:\n  - id: a\n    patterns: A\n"), 0o644))
	doc, err := LoadSchema(p)
	require.NoError(t, err)
	assert.Len(t, doc.Schemas, 1)

	_, err = LoadSchema(filepath.Join(dir, "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	doc, err = LoadSchema(bad)
	assert.ErrorIs(t, err, ErrMalformedSchema)
	assert.Contains(t, err.Error(), "bad.json")
	assert.Empty(t, doc.Schemas)
}

func TestMerge(t *testing.T) {
	base := DefaultRules()
	s := &Schema{Rules: []Rule{
		{ID: "compliance.todo", Patterns: []string{"FIXME"}, Severity: types.SevMedium},
		{ID: "custom.new", Patterns: []string{"NEW"}, Severity: types.SevInfo},
	}}
	out := Merge(base, s)
	require.Len(t, out, len(base)+1)
	assert.Equal(t, "compliance.todo", out[2].ID)
	assert.Equal(t, []string{"FIXME"}, out[2].Patterns)
	assert.Equal(t, "custom.new", out[len(out)-1].ID)

	s.ReplaceDefaults = true
	out = Merge(base, s)
	require.Len(t, out, 2)
	assert.Equal(t, "compliance.todo", out[0].ID)

	assert.Equal(t, base, Merge(base, nil))
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, DefaultPolicy().Digest(), PolicyFor(nil).Digest())

	doc, err := ParseSchema([]byte(`{"replace_defaults": true, "rules": [{"id": "only", "patterns": "X"}]}`))
	require.NoError(t, err)
	p := PolicyFor(doc.Select(""))
	require.Len(t, p.Rules, 1)
	assert.Empty(t, p.Evaluate("a.go", []string{"TODO"}))
	assert.Len(t, p.Evaluate("a.md", []string{"X"}), 1, "schema rules without skip apply to docs")
}
