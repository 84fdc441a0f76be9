package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaultsWithoutFiles(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, int64(10), cfg.HTTP.Concurrency)
	assert.Equal(t, int64(3), cfg.Browser.Concurrency)
	assert.Equal(t, []string{"amazonaws", "knitcdn", "jwpltx"}, cfg.Capture.Blocklist)
	assert.Equal(t, "http://localhost:9222", cfg.Browser.RemoteURL)
	assert.Equal(t, 10*time.Second, cfg.Capture.AcquireTimeout)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yml := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(yml, []byte(`
data_path: /srv/iptv
http:
  concurrency: 4
browser:
  concurrency: 2
capture:
  blocklist: [foo]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BROWSER_CONCURRENCY=5\n"), 0o644))
	t.Setenv("HTTP_CONCURRENCY", "7")
	t.Cleanup(func() { os.Unsetenv("BROWSER_CONCURRENCY") })

	cfg, err := Load(yml)
	require.NoError(t, err)

	assert.Equal(t, "/srv/iptv", cfg.DataPath)
	assert.Equal(t, int64(7), cfg.HTTP.Concurrency)
	assert.Equal(t, int64(5), cfg.Browser.Concurrency)
	assert.Equal(t, []string{"foo"}, cfg.Capture.Blocklist)
	assert.Equal(t, "/srv/iptv/caches", cfg.CacheDir())
	assert.Equal(t, "/srv/iptv/TV.m3u8", cfg.CombinedPath())
}

func TestMirrorsFromYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yml := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(yml, []byte(`
sources:
  mirrors:
    pixel: [https://a.example, https://b.example]
`), 0o644))

	cfg, err := Load(yml)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Sources.Mirrors["pixel"])
	assert.Empty(t, cfg.Sources.Mirrors["roxie"])
	assert.Equal(t, []string{"pixel", "roxie"}, cfg.Sources.Enabled, "defaults survive a partial sources block")
}

func TestLoadRejectsBadConcurrency(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BROWSER_CONCURRENCY", "0")

	_, err := Load("")
	assert.Error(t, err)
}

func TestSourcesFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SOURCES", "tvapp, roxie ,")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"tvapp", "roxie"}, cfg.Sources.Enabled)
}
