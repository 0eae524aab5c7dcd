package config_test

import (
	"testing"
	"time"

	"github.com/existflow/learnportal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("LEARNPORTAL_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, 6, cfg.TotalTopics)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("LEARNPORTAL_HOME", t.TempDir())
	t.Setenv("LEARNPORTAL_SERVER_URL", "https://api.example.com")
	t.Setenv("LEARNPORTAL_TOTAL_TOPICS", "8")

	cfg := config.DefaultConfig()
	assert.Equal(t, "https://api.example.com", cfg.ServerURL)
	assert.Equal(t, 8, cfg.TotalTopics)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("LEARNPORTAL_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Set("origin", "http://127.0.0.1:9000/"))
	require.NoError(t, cfg.Set("request_timeout", "5s"))
	require.NoError(t, cfg.Save())

	loaded, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", loaded.Origin)
	assert.Equal(t, 5*time.Second, loaded.RequestTimeout)
}

func TestSetRejectsUnknownAndInvalid(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Error(t, cfg.Set("colour", "blue"))
	assert.Error(t, cfg.Set("total_topics", "-1"))
	assert.Error(t, cfg.Set("log_console", "maybe"))
}
