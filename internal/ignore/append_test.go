package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_IdempotentAndCreates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, FileName)

	changed, err := Append(dir, "dist/")
	require.NoError(t, err)
	assert.True(t, changed)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "dist/\n", string(b))

	changed, err = Append(dir, "dist/")
	require.NoError(t, err)
	assert.False(t, changed)
	b, _ = os.ReadFile(p)
	assert.Equal(t, "dist/\n", string(b))

	m, err := Load(p)
	require.NoError(t, err)
	assert.True(t, m.MatchDir("dist"))
}

func TestAppend_FixesMissingNewline(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte("*.log"), 0o644))

	_, err := Append(dir, "*.tmp")
	require.NoError(t, err)
	b, _ := os.ReadFile(p)
	assert.Equal(t, "*.log\n*.tmp\n", string(b))
}

func TestAppend_RejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	_, err := Append(dir, "[oops")
	assert.Error(t, err)
	changed, err := Append(dir, "   ")
	require.NoError(t, err)
	assert.False(t, changed)
	_, statErr := os.Stat(filepath.Join(dir, FileName))
	assert.True(t, os.IsNotExist(statErr))
}
