package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "handel.yml", cfg.Project)
	assert.Equal(t, "", cfg.Env)
	assert.Equal(t, "24h", cfg.Since)
	assert.Equal(t, "docker-compose.yml", cfg.Output)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Docker.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Reference.Timeout)
	assert.Equal(t, "jq", cfg.Reference.JQPath)
	assert.Equal(t, "s3.amazonaws.com", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.UseSSL)
	assert.True(t, cfg.Volumes.Enabled)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("HANDEL_CONFIG", "/srv/stack/handel.yml")
	t.Setenv("HANDEL_ENV", "staging")
	t.Setenv("HANDEL_SINCE", "2d")
	t.Setenv("HANDEL_LOG_LEVEL", "warn")
	t.Setenv("HANDEL_DOCKER_ENABLED", "false")
	t.Setenv("HANDEL_REFERENCE_TIMEOUT", "3s")
	t.Setenv("HANDEL_S3_ENDPOINT", "minio.local:9000")
	t.Setenv("HANDEL_S3_USE_SSL", "false")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/stack/handel.yml", cfg.Project)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "2d", cfg.Since)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Docker.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Reference.Timeout)
	assert.Equal(t, "minio.local:9000", cfg.S3.Endpoint)
	assert.False(t, cfg.S3.UseSSL)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HANDEL_ENV", "staging")
	t.Setenv("HANDEL_OUTPUT", "from-env.yml")

	cmd := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"-e", "prod", "--log-format", "json"}))

	cfg, err := LoadConfig(cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "from-env.yml", cfg.Output, "unset flags leave the environment value")
}

func TestLoadConfig_EmptyOutput(t *testing.T) {
	clearEnv(t)
	t.Setenv("HANDEL_OUTPUT", " ")

	_, err := LoadConfig(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errConfig)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		format   string
		logDebug bool
		logWarn  bool
		wantJSON bool
	}{
		{name: "debug text", level: "debug", format: "text", logDebug: true, logWarn: true},
		{name: "info json", level: "info", format: "json", logWarn: true, wantJSON: true},
		{name: "warning alias", level: "WARNING", format: "text", logWarn: true},
		{name: "error", level: "error", format: "text"},
		{name: "unknown level", level: "loud", format: "text", logWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := &Config{Log: LogConfig{Level: tt.level, Format: tt.format}}
			logger := SetupLogger(cfg, &buf)

			logger.Debug("debug message")
			logger.Warn("warn message")

			out := buf.String()
			assert.Equal(t, tt.logDebug, strings.Contains(out, "debug message"))
			assert.Equal(t, tt.logWarn, strings.Contains(out, "warn message"))
			if tt.logWarn {
				assert.Equal(t, tt.wantJSON, strings.HasPrefix(out, "{"))
			}
		})
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "HANDEL_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}
