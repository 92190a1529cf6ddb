package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 9000
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "pump"
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "2112"
log_flush_debounce_millis = 500

[production]
host = "0.0.0.0"
port = 8080
log_level = "info"
logs_path = "/var/log/pump"
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "pump"
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "2112"
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := Load(context.Background(), "development", path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.Equal(t, "pump", cfg.PostgresDBName)
	assert.Equal(t, 500, cfg.LogFlushDebounceMillis)
	assert.Equal(t, 50, cfg.HistoryDefaultLimit)

	cfg, err = Load(context.Background(), "production", path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/var/log/pump", cfg.LogsPath)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeTestConfig(t)

	t.Setenv("PUMP_PORT", "7777")
	t.Setenv("PUMP_LOG_LEVEL", "error")
	t.Setenv("PUMP_POSTGRES_DB_NAME", "pump_test")

	// every overridden field already holds a non-zero TOML value,
	// the env var must still win
	cfg, err := Load(context.Background(), "development", path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "pump_test", cfg.PostgresDBName)
	assert.Equal(t, "localhost", cfg.Host)
}

func TestLoad_UnknownEnv(t *testing.T) {
	path := writeTestConfig(t)
	_, err := Load(context.Background(), "staging", path)
	require.Error(t, err)
}
