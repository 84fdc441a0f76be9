package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	Tasks.WithLabelValues("browser", "completed").Inc()
	SourceEntries.WithLabelValues("PIXEL").Set(4)

	path := filepath.Join(t.TempDir(), "scraper.prom")
	require.NoError(t, WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `m3u_live_acquire_tasks_total{outcome="completed",pool="browser"}`)
	assert.Contains(t, string(data), `m3u_live_source_entries{source="PIXEL"} 4`)
}

func TestWriteFileBlankPath(t *testing.T) {
	assert.NoError(t, WriteFile(""))
}
