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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Webhooks.MaxBodyBytes)
	assert.Equal(t, "#6B7280", cfg.Webhooks.DefaultTagColor)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Webhooks.RequireSignature)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "webhooks:\n  require_signature: false\n  secret_key: from-file\n")
	t.Setenv("WEBHOOKS_SECRET_KEY", "from-env")
	t.Setenv("WEBHOOKS_REQUIRE_SIGNATURE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Webhooks.SecretKey)
	assert.True(t, cfg.Webhooks.RequireSignature)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
