package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("debug")
	require.True(t, ok)
	assert.Equal(t, LevelDebug, l)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}

func TestConfigureRejectsUnknownValues(t *testing.T) {
	assert.Error(t, Configure("loud", "text", "stdout"))
	assert.Error(t, Configure("INFO", "xml", "stdout"))
}

func TestConfigureWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtfs.log")
	require.NoError(t, Configure("INFO", "json", path))
	t.Cleanup(func() { _ = Configure("INFO", "text", "stdout") })

	Debug("hidden %d", 1)
	Info("migrated %s", "/a")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"migrated /a"`)
	assert.NotContains(t, string(data), "hidden")
}
