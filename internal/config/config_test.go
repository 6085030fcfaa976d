package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithMemoryDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APPRAISAL_STORAGE_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.Equal(t, uint32(5), cfg.Notify.Breaker.ConsecutiveFailures)
	assert.Equal(t, 30*time.Second, cfg.Notify.Breaker.Timeout)
	assert.Equal(t, "appraisal", cfg.Redis.ChannelPrefix)
	assert.Equal(t, ":8080", cfg.Server.Addr())
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APPRAISAL_STORAGE_DRIVER", "postgres")
	t.Setenv("APPRAISAL_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestLoadFallsBackToDatabaseURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APPRAISAL_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/appraisal")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/appraisal", cfg.Database.URL)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "appraisal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
storage:
  driver: memory
notify:
  workers: 4
log:
  level: debug
  format: json
`), 0o600))
	t.Setenv("APPRAISAL_NOTIFY_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Notify.Workers, "environment wins over the file")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APPRAISAL_STORAGE_DRIVER=memory\nAPPRAISAL_SERVER_PORT=7070\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("APPRAISAL_STORAGE_DRIVER")
		os.Unsetenv("APPRAISAL_SERVER_PORT")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := Config{
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{Driver: DriverMemory},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Storage.Driver = "mongo"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Log.Level = "loud"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Log.Format = "xml"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Server.Port = 0
	assert.Error(t, bad.Validate())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
