package engine

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/devaudit/dat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func filePaths(res *types.ScanResult) []string {
	var out []string
	for _, f := range res.Files {
		out = append(out, f.Path)
	}
	return out
}

func record(t *testing.T, res *types.ScanResult, path string) types.FileRecord {
	t.Helper()
	for _, f := range res.Files {
		if f.Path == path {
			return f
		}
	}
	t.Fatalf("no record for %s in %v", path, filePaths(res))
	return types.FileRecord{}
}

func TestScan_SafeSkipsBinary_DeepKeepsIt(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"code.py":    "import os\n# TODO: fix\n",
		"binary.bin": "\x00\x01\x02",
	})

	res, err := Scan(context.Background(), Options{Root: dir, Safe: true, MaxLines: 1000, MaxSize: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"code.py"}, filePaths(res))
	assert.Equal(t, []string{"binary.bin"}, res.Skipped)
	assert.Equal(t, types.ScanStatistics{Scanned: 1, Skipped: 1, Binary: 1}, res.Stats)
	code := record(t, res, "code.py")
	assert.Equal(t, 2, code.Lines)
	sum := blake3.Sum256([]byte("import os\n# TODO: fix\n"))
	assert.Equal(t, hex.EncodeToString(sum[:]), code.Checksum)
	assert.Equal(t, "utf-8", code.Encoding)

	res, err = Scan(context.Background(), Options{Root: dir, Safe: true, Deep: true, MaxLines: 1000, MaxSize: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"binary.bin", "code.py"}, filePaths(res))
	bin := record(t, res, "binary.bin")
	assert.True(t, bin.Binary)
	assert.Equal(t, 0, bin.Lines)
	assert.Equal(t, int64(3), bin.Size)
	assert.Len(t, bin.Checksum, 64)
	assert.Empty(t, bin.Encoding, "binary files carry no text encoding")
	assert.Empty(t, res.Skipped)
}

func TestScan_InvalidRoot(t *testing.T) {
	dir := t.TempDir()
	res, err := Scan(context.Background(), Options{Root: filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, ErrInvalidRoot)
	assert.Nil(t, res)

	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	res, err = Scan(context.Background(), Options{Root: file})
	assert.ErrorIs(t, err, ErrInvalidRoot)
	assert.Nil(t, res)
}

func TestScan_IgnoreAndPrune(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/app.go":        "package main\n",
		"src/debug.log":     "log\n",
		"build/out/a.txt":   "artifact\n",
		"build/out/b.txt":   "artifact\n",
		"docs/guide.md":     "# guide\n",
		"nested/build/x.go": "package x\n",
	})
	res, err := Scan(context.Background(), Options{Root: dir, Ignore: []string{"*.log", "build"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"docs/guide.md", "src/app.go"}, filePaths(res))
	assert.Equal(t, []string{"src/debug.log"}, res.Skipped, "pruned directories are never listed")
	for _, f := range res.Files {
		assert.False(t, strings.HasPrefix(f.Path, "build/"))
	}
}

func TestScan_IgnoreFileAndDefaultExcludes(t *testing.T) {
	dir := writeTree(t, map[string]string{
		".datignore":         "# local\nsecrets/\n",
		"secrets/key.pem":    "KEY\n",
		".git/config":        "[core]\n",
		"node_modules/x.js":  "x\n",
		"main.go":            "package main\n",
		"sub/.DS_Store":      "junk",
		"sub/keep.txt":       "keep\n",
	})
	res, err := Scan(context.Background(), Options{Root: dir, DefaultExcludes: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".datignore", "main.go", "sub/keep.txt"}, filePaths(res))
	assert.Equal(t, []string{"sub/.DS_Store"}, res.Skipped)

	res, err = Scan(context.Background(), Options{Root: dir, NoIgnoreFile: true})
	require.NoError(t, err)
	assert.Contains(t, filePaths(res), "secrets/key.pem")
	assert.Contains(t, filePaths(res), ".git/config")
}

func TestScan_OnlyAllowlist(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a/keep.go":  "package a\n",
		"a/other.go": "package a\n",
		"b/c.go":     "package b\n",
		"root.txt":   "x\n",
	})
	res, err := Scan(context.Background(), Options{Root: dir, Only: []string{"a/keep.go", "root.txt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/keep.go", "root.txt"}, filePaths(res))
	assert.Equal(t, []string{"a/other.go"}, res.Skipped)
}

func TestScan_SafeThresholds(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"long.txt":  strings.Repeat("line\n", 50),
		"big.txt":   strings.Repeat("x", 2048) + "\n",
		"small.txt": "one\ntwo\n",
	})
	opts := Options{Root: dir, Safe: true, MaxLines: 10, MaxSize: 1024}

	res, err := Scan(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"small.txt"}, filePaths(res))
	assert.Equal(t, []string{"big.txt", "long.txt"}, res.Skipped)

	opts.Deep = true
	res, err = Scan(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"big.txt", "long.txt", "small.txt"}, filePaths(res))
	assert.Equal(t, 50, record(t, res, "long.txt").Lines, "deep counts exhaustively")
	assert.Equal(t, int64(2049), record(t, res, "big.txt").Size)
}

func TestScan_UnsafeCountsAreBounded(t *testing.T) {
	dir := writeTree(t, map[string]string{"long.txt": strings.Repeat("line\n", 50)})
	res, err := Scan(context.Background(), Options{Root: dir, MaxLines: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, record(t, res, "long.txt").Lines)
	assert.Empty(t, res.Skipped)
}

func TestScan_ZeroThresholdsDisabled(t *testing.T) {
	dir := writeTree(t, map[string]string{"long.txt": strings.Repeat("line\n", 50)})
	res, err := Scan(context.Background(), Options{Root: dir, Safe: true})
	require.NoError(t, err)
	assert.Equal(t, 50, record(t, res, "long.txt").Lines)
}

func TestScan_Symlinks(t *testing.T) {
	dir := writeTree(t, map[string]string{"real/a.txt": "a\n"})
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "linkdir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(dir, "real", "a.txt"), filepath.Join(dir, "linkfile")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), filepath.Join(dir, "dangling")))

	res, err := Scan(context.Background(), Options{Root: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"linkfile", "real/a.txt"}, filePaths(res))
	assert.Equal(t, []string{"linkdir"}, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "dangling: "), res.Errors[0])
	assert.NotContains(t, res.Errors[0], dir, "errors carry relative paths only")
	assert.Equal(t, 1, res.Stats.Errors)
}

func TestScan_SymlinkedRoot(t *testing.T) {
	dir := writeTree(t, map[string]string{"code.py": "x\n# TODO: fix\n"})
	link := filepath.Join(t.TempDir(), "checkout")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := Scan(context.Background(), Options{Root: link})
	require.NoError(t, err)
	assert.Equal(t, []string{"code.py"}, filePaths(res))
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 1, res.Stats.Scanned)
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, want, res.Root)
	assert.Equal(t, 1, CountTargets(Options{Root: link}))

	_, err = Scan(context.Background(), Options{Root: filepath.Join(link, "missing")})
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestScan_RecordsEncoding(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"plain.txt":  "hello\n",
		"bom.txt":    "\xef\xbb\xbfhello\n",
		"legacy.txt": "caf\xe9\n",
		"wide.txt":   "\xff\xfeh\x00i\x00",
	})
	res, err := Scan(context.Background(), Options{Root: dir})
	require.NoError(t, err)
	want := map[string]string{
		"plain.txt":  "utf-8",
		"bom.txt":    "utf-8-sig",
		"legacy.txt": "latin-1",
	}
	for p, enc := range want {
		assert.Equal(t, enc, record(t, res, p).Encoding, p)
	}
	if wide := record(t, res, "wide.txt"); !wide.Binary {
		assert.Equal(t, "utf-16", wide.Encoding)
	}
}

func TestScan_PartitionInvariant(t *testing.T) {
	files := map[string]string{
		"a.go":          "package a // TODO\n",
		"b.bin":         "\x00\x00",
		"c.log":         "log\n",
		"d/e.txt":       strings.Repeat("x\n", 30),
		"d/f.txt":       "short\n",
		"g/h/i.json":    "{}",
		"g/h/empty.txt": "",
	}
	dir := writeTree(t, files)
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "broken")))

	res, err := Scan(context.Background(), Options{Root: dir, Ignore: []string{"*.log"}, Safe: true, MaxLines: 10, Threads: 3})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, p := range filePaths(res) {
		seen[p]++
	}
	for _, p := range res.Skipped {
		seen[p]++
	}
	for _, e := range res.Errors {
		seen[strings.SplitN(e, ": ", 2)[0]]++
	}
	var all []string
	for p, n := range seen {
		assert.Equal(t, 1, n, "%s appears in more than one outcome", p)
		all = append(all, p)
	}
	sort.Strings(all)
	want := []string{"broken"}
	for p := range files {
		want = append(want, p)
	}
	sort.Strings(want)
	assert.Equal(t, want, all)

	assert.Equal(t, len(res.Files), res.Stats.Scanned)
	assert.Equal(t, len(res.Skipped), res.Stats.Skipped)
	assert.Equal(t, len(res.Errors), res.Stats.Errors)
	assert.True(t, sort.StringsAreSorted(filePaths(res)))
	assert.True(t, sort.StringsAreSorted(res.Skipped))
}

func TestScan_Cancelled(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.txt": "a\n", "b/c.txt": "c\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Scan(ctx, Options{Root: dir})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Interrupted)
	assert.Equal(t, res.Stats.Scanned, len(res.Files))
	assert.Equal(t, res.Stats.Skipped, len(res.Skipped))
}

func TestScan_RateLimitAndProgress(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.txt": "a\n", "b.txt": "b\n", "c.log": "c\n", "skip/d.txt": "d\n"})
	opts := Options{Root: dir, Ignore: []string{"*.log", "skip"}, MaxFilesPerSecond: 1000}
	var calls int64
	opts.Progress = func() { atomic.AddInt64(&calls, 1) }

	res, err := Scan(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, filePaths(res))
	assert.Equal(t, int64(3), calls)
	assert.Equal(t, 3, CountTargets(opts))
}

func TestCountTargets_InvalidRoot(t *testing.T) {
	assert.Equal(t, 0, CountTargets(Options{Root: filepath.Join(t.TempDir(), "missing")}))
}

func TestDescribe(t *testing.T) {
	_, err := os.Stat("/definitely/not/here")
	assert.Equal(t, "x/y: no such file or directory", describe("x/y", err))
}
