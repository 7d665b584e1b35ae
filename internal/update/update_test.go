package update

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_NoNetworkOrCI(t *testing.T) {
	t.Setenv("CI", "1")
	latest, newer, err := Check("1.0.0", false)
	require.NoError(t, err)
	assert.Empty(t, latest)
	assert.False(t, newer)

	t.Setenv("CI", "")
	latest, newer, err = Check("1.0.0", true)
	require.NoError(t, err)
	assert.Empty(t, latest)
	assert.False(t, newer)
}

func TestNormalizeAndCompare(t *testing.T) {
	assert.Equal(t, "1.2.3", normalize(" v1.2.3 "))

	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.3", 0},
		{"1.3.0", "1.2.9", 1},
		{"1.2.0", "1.2.1", -1},
		{"1.10.0", "1.9.0", 1},
		{"1.2.0", "1.2.0-rc.1", 1},
		{"1.2", "1.1.9", 1},
		{"garbage", "0.0.1", -1},
		{"0.0.1", "garbage", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compare(tt.a, tt.b), "compare(%q, %q)", tt.a, tt.b)
	}
}

func TestCheck_UsesCacheWhenFresh(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CI", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "dat", cacheFileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	b, err := json.Marshal(cache{LastChecked: time.Now(), Latest: "1.2.3"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	latest, newer, err := Check("1.2.2", false)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", latest)
	assert.True(t, newer)
}

func TestCheck_RefreshesStaleCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dat-updater", r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": "v9.9.9"})
	}))
	defer srv.Close()
	orig := latestURL
	latestURL = srv.URL
	t.Cleanup(func() { latestURL = orig })

	dir := t.TempDir()
	t.Setenv("CI", "")
	t.Setenv("XDG_CONFIG_HOME", dir)

	latest, newer, err := Check("1.0.0", false)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", latest)
	assert.True(t, newer)

	b, err := os.ReadFile(filepath.Join(dir, "dat", cacheFileName))
	require.NoError(t, err)
	var c cache
	require.NoError(t, json.Unmarshal(b, &c))
	assert.Equal(t, "9.9.9", c.Latest)
}
