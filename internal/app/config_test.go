package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("BACKEND_URL", "https://api.meridian.test/v1")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Second, cfg.MetricsPollInterval)
	assert.Equal(t, 3, cfg.BoundaryMaxRetries)
	assert.True(t, cfg.RedirectOnUnauthenticated)
	assert.Empty(t, cfg.BackendServiceToken)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateRejectsRelativeBackend(t *testing.T) {
	cfg := Config{SessionSecret: "s", CSRFSecret: "c", BackendURL: "/api"}
	assert.EqualError(t, cfg.Validate(), "backend url must be absolute")

	cfg.BackendURL = "http://127.0.0.1:9000"
	cfg.BoundaryMaxRetries = -1
	assert.Error(t, cfg.Validate())
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn", AppEnv: "staging"})

	logger.Info("hidden")
	logger.Warn("shown", "path", "/accounts")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "meridian-web", entry["service"])
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, "/accounts", entry["path"])
}
