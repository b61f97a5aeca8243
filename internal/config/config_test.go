package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvReplicaURL, "")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
[api]
base_url = "http://erp.local:8080"

[table]
page_size = 25
`), 0644)
	require.NoError(t, err)

	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvReplicaURL, "postgres://ro@replica/erp")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://erp.local:8080", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
	assert.Equal(t, 25, cfg.Table.PageSize)
	assert.Equal(t, "postgres://ro@replica/erp", cfg.Replica.URL)

	t.Setenv(EnvAPIURL, "http://override")
	cfg, err = LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override", cfg.API.BaseURL)

	raw, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://erp.local:8080", raw.API.BaseURL, "LoadFile ignores the environment")
	assert.Empty(t, raw.Replica.URL)
}

func TestLoadFrom_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api\n"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvReplicaURL, "")
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	require.NoError(t, cfg.SetValue("watch.interval", "60"))
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 60, loaded.Watch.IntervalSeconds)
	assert.Equal(t, time.Minute, loaded.WatchInterval())
}

func TestGetSetValue(t *testing.T) {
	cfg := Default()

	v, ok := cfg.GetValue("table.page_size")
	assert.True(t, ok)
	assert.Equal(t, "10", v)

	require.NoError(t, cfg.SetValue("api.url", "http://x"))
	v, _ = cfg.GetValue("api.base_url")
	assert.Equal(t, "http://x", v)

	assert.ErrorContains(t, cfg.SetValue("table.page_size", "0"), "below minimum")
	assert.ErrorContains(t, cfg.SetValue("table.page_size", "501"), "exceeds maximum")
	assert.ErrorContains(t, cfg.SetValue("table.page_size", "ten"), "invalid integer")
	assert.ErrorContains(t, cfg.SetValue("nope.key", "1"), "unknown config key")

	_, ok = cfg.GetValue("api")
	assert.False(t, ok)
}

func TestListKeysAndHelp(t *testing.T) {
	assert.Equal(t, []string{
		"api.base_url",
		"api.timeout_seconds",
		"replica.url",
		"table.date_field",
		"table.page_size",
		"watch.interval_seconds",
	}, ListKeys())

	help := GenerateHelpText()
	assert.Contains(t, help, "Backend:")
	assert.Contains(t, help, "table.page_size")
	assert.Contains(t, help, "(default: 10)")
}
