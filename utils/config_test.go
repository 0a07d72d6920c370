package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data": {"backend": "sqlite", "dir": "`+filepath.ToSlash(dir)+`"}}`), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, "sqlite", config.Data.Backend)
	assert.Equal(t, filepath.Clean(dir), config.Data.Dir)
	assert.Equal(t, def.Data.DebounceMS, config.Data.DebounceMS)
	assert.Equal(t, def.Images, config.Images)
	assert.Equal(t, def.UI, config.UI)
	assert.Equal(t, 500*time.Millisecond, config.DebounceWindow())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"backend":   `{"data": {"backend": "mongo"}}`,
		"debounce":  `{"data": {"debounce_ms": -1}}`,
		"quality":   `{"images": {"jpeg_quality": 0}}`,
		"dimension": `{"images": {"max_dimension": -5}}`,
		"syntax":    `{"data": `,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	config := DefaultConfig()
	config.Data.Dir = filepath.Join(dir, "data")
	config.Log.Dir = filepath.Join(dir, "logs")
	config.UI.Theme = "dark"
	config.Data.DebounceMS = 250
	config.Log.Debug = true
	require.NoError(t, SaveConfig(path, config))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestEnsureDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	got, err := EnsureDefaultConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.FileExists(t, path)

	// an existing file is left alone
	require.NoError(t, os.WriteFile(path, []byte(`{"ui": {"theme": "dark"}}`), 0644))
	_, err = EnsureDefaultConfig(path)
	require.NoError(t, err)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", config.UI.Theme)
}
