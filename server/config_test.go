package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_LoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_config.json")
	c := NewConfig(path)
	require.NoError(t, c.Load())

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 100, c.HistoryLimit)
	assert.Equal(t, "HAM-", c.CallsignPrefix)

	_, err := os.Stat(path)
	assert.NoError(t, err, "first load writes the defaults file")
}

func TestConfig_LoadOverridesAndSanitizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": "9090",
		"history_limit": -5,
		"callsign_prefix": "DL-"
	}`), 0644))

	c := NewConfig(path)
	require.NoError(t, c.Load())
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 100, c.HistoryLimit, "non-positive limits fall back to the default")
	assert.Equal(t, "DL-", c.CallsignPrefix)
}
