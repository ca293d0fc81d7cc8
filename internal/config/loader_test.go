package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  mode: debug
database:
  host: db.internal
  username: linker
  password: secret
grouping:
  metric: jaccard
  threshold: 0.25
  working_memory_mib: 2048
storage:
  backend: local
  local_dir: /var/lib/clinlink/snapshots
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "linker", cfg.Database.Username)
	assert.Equal(t, "jaccard", cfg.Grouping.Metric)
	assert.Equal(t, 0.25, cfg.Grouping.Threshold)
	assert.Equal(t, 2048, cfg.Grouping.WorkingMemoryMiB)
	assert.Equal(t, "/var/lib/clinlink/snapshots", cfg.Storage.LocalDir)

	// Unset sections come back fully defaulted.
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultAnnotatorURL, cfg.Annotator.Client.BaseURL)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read config file")
}

func TestLoad_InvalidConfigFailsValidation(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: db.internal
  username: linker
grouping:
  metric: euclidean
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grouping.metric")
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfigFile(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLINLINK_DATABASE_HOST", "pg.cluster.local")
	t.Setenv("CLINLINK_DATABASE_USERNAME", "linker")
	t.Setenv("CLINLINK_GROUPING_THRESHOLD", "0.3")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "pg.cluster.local", cfg.Database.Host)
	assert.Equal(t, "linker", cfg.Database.Username)
	assert.Equal(t, 0.3, cfg.Grouping.Threshold)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CLINLINK_SERVER_PORT", "7070")

	cfg, err := Load(writeConfigFile(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}
