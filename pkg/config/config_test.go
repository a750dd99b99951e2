package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.EqualValues(t, 11111, cfg.Server.Port)
	assert.Equal(t, "/export", cfg.Server.ExportName)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 2049
  export_name: /data
logging:
  level: DEBUG
  format: json
metrics:
  enabled: true
  listen: 127.0.0.1:9100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 2049, cfg.Server.Port)
	assert.Equal(t, "/data", cfg.Server.ExportName)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Server.ExportName = "export" // must start with /
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Logging.Format = "xml"
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Server.Port = 0
	assert.Error(t, Validate(cfg))
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("QUILLNFS_SERVER_PORT", "3049")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.EqualValues(t, 3049, cfg.Server.Port)
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")

	require.NoError(t, WriteSample(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Server.ExportName, cfg.Server.ExportName)

	// Refuses to overwrite without force.
	assert.Error(t, WriteSample(path, false))
	assert.NoError(t, WriteSample(path, true))
}
