package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Smoke(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.env"), []byte("API_KEY=abc\n"), 0o644))

	rep, err := Run(context.Background(), Config{Options: Options{Root: root}})
	require.NoError(t, err)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, "secrets.api_key", rep.Violations[0].RuleID)
	assert.NotEmpty(t, rep.Fingerprint)

	var buf bytes.Buffer
	require.NoError(t, MarshalReport(&buf, rep))
	back, err := UnmarshalReport(&buf)
	require.NoError(t, err)
	assert.Equal(t, rep.Fingerprint, back.Fingerprint)
	assert.True(t, Diff(rep, back).Empty())
}

func TestRun_InvalidRoot(t *testing.T) {
	_, err := Run(context.Background(), Config{Options: Options{Root: filepath.Join(t.TempDir(), "missing")}})
	assert.True(t, errors.Is(err, ErrInvalidRoot))
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "policy.yml")
	doc := "schemas:\n  - repos: [widgets]\n    replace_defaults: true\n    rules:\n      - id: custom.fixme\n        patterns: FIXME\n"
	require.NoError(t, os.WriteFile(p, []byte(doc), 0o644))

	pol, err := LoadPolicy(p, "widgets")
	require.NoError(t, err)
	require.Len(t, pol.Rules, 1)
	assert.Equal(t, "custom.fixme", pol.Rules[0].ID)

	pol, err = LoadPolicy(p, "other")
	require.NoError(t, err)
	assert.Equal(t, len(DefaultPolicy().Rules), len(pol.Rules))

	pol, err = LoadPolicy(filepath.Join(dir, "missing.yml"), "")
	assert.Error(t, err)
	assert.Nil(t, pol)
}

func TestLoadPolicy_MalformedFallsBackToDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(p, []byte("{not: [valid"), 0o644))

	pol, err := LoadPolicy(p, "widgets")
	assert.Error(t, err)
	require.NotNil(t, pol)
	assert.Equal(t, DefaultPolicy().Digest(), pol.Digest())
	assert.NotEmpty(t, pol.Rules)
}
