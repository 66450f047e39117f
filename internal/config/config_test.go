package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"API_KEY", "DATABASE_URL", "LISTEN", "LOOK_AHEAD_DAYS", "ICAL_URLS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, PolicyPlain, cfg.Policy)
	assert.Equal(t, 3, cfg.LookAheadDays)
	assert.False(t, cfg.WindowFilter)
	assert.Equal(t, 2*time.Hour, cfg.TTL())
	assert.Equal(t, "Personal Calendar", cfg.ChannelTitle)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "s3cret")
	t.Setenv("ICAL_URLS", `["https://a.example.com/cal.ics","https://b.example.com/cal.ics"]`)
	t.Setenv("LOOK_AHEAD_DAYS", "7")
	t.Setenv("DATABASE_URL", "postgres://feed:pw@localhost/feeds")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.APIKey)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "https://a.example.com/cal.ics", cfg.Sources[0].URL)
	assert.Equal(t, 7, cfg.LookAheadDays)
	assert.True(t, cfg.WindowFilter, "LOOK_AHEAD_DAYS enables the window filter")
	assert.Equal(t, "postgres://feed:pw@localhost/feeds", cfg.DatabaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestEnvRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ICAL_URLS", "not json")

	_, err := Load("")
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("LOOK_AHEAD_DAYS", "three")

	_, err = Load("")
	assert.Error(t, err)
}

func TestNormalizePolicyFallback(t *testing.T) {
	cfg := &Config{Policy: "fancy"}
	cfg.Normalize()
	assert.Equal(t, PolicyPlain, cfg.Policy)

	cfg = &Config{Policy: PolicyRich}
	cfg.Normalize()
	assert.Equal(t, PolicyRich, cfg.Policy)
}

func TestNormalizeExpansionRequiresWindow(t *testing.T) {
	cfg := &Config{ExpandRecurring: true, WindowFilter: false}
	cfg.Normalize()
	assert.False(t, cfg.ExpandRecurring)

	cfg = &Config{ExpandRecurring: true, WindowFilter: true}
	cfg.Normalize()
	assert.True(t, cfg.ExpandRecurring)
}

func TestTTLFallback(t *testing.T) {
	cfg := &Config{CacheTTL: "bogus"}
	assert.Equal(t, 2*time.Hour, cfg.TTL())

	cfg = &Config{CacheTTL: "30m"}
	assert.Equal(t, 30*time.Minute, cfg.TTL())
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveAndReload(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.APIKey = "persisted"
	cfg.Sources = []SourceConfig{{URL: "https://a.example.com/cal.ics", ID: "a"}}
	cfg.Policy = PolicyRich
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "persisted", loaded.APIKey)
	assert.Equal(t, PolicyRich, loaded.Policy)
	require.Len(t, loaded.Sources, 1)
	assert.Equal(t, "a", loaded.Sources[0].ID)
}
