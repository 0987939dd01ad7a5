package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Empty(t, cfg.RedisAddr, "no Redis by default")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	cfg := Load()
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadProfile_EmptyPathIsDefaults(t *testing.T) {
	profile, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, profile.Solver.Timeout())
	assert.Equal(t, 1024, profile.Cache.Capacity)
	assert.Equal(t, 0.6, profile.Weights.Agreement)
}

func TestLoadProfile_OverlaysDefaults(t *testing.T) {
	doc := `
solver:
  timeout_ms: 2500
rate_limit:
  requests: 10
  window_ms: 1000
weights:
  agreement: 0.7
  mean_confidence: 0.3
  majority_penalty: 0.8
  cap: 0.999
  split: 0.5
  full_agreement_engines: 3
`
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	profile, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, profile.Solver.Timeout())
	assert.Equal(t, 10, profile.RateLimit.Policy().Requests)
	assert.Equal(t, time.Second, profile.RateLimit.Policy().Window)
	assert.Equal(t, 0.7, profile.Weights.Agreement)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1024, profile.Cache.Capacity)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile("/nonexistent/profile.yaml")
	assert.Error(t, err)
}
