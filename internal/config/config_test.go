package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, _, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8190, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "stack", cfg.DefaultLayout)
	assert.Equal(t, 30, cfg.CacheTTLSec)
	assert.Equal(t, 1000, cfg.MaxViews)
	assert.False(t, cfg.KubernetesEnabled)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, "port: 9100\nlog_level: debug\ndefault_layout: star\ncache_size: 4\n")
	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "star", cfg.DefaultLayout)
	assert.Equal(t, 4, cfg.CacheSize)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("KUBILITICS_TOPOLOGY_PORT", "9000")
	t.Setenv("KUBILITICS_TOPOLOGY_LOG_LEVEL", "warn")
	t.Setenv("KUBILITICS_TOPOLOGY_KUBERNETES_ENABLED", "true")

	path := writeConfig(t, "port: 9100\n")
	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.KubernetesEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "port: 0\nlog_level: loud\ntracing_sampling_rate: 2\n")
	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "tracing_sampling_rate")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "port: [unclosed\n")
	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")
	_, v, err := Load(path)
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	Watch(v, func(c *Config) { changed <- c }, nil)

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))

	select {
	case c := <-changed:
		assert.Equal(t, "debug", c.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
