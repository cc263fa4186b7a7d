package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worklog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "./worklog.db", cfg.Database.Path)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.False(t, cfg.Auth.DevTokens)
	assert.Equal(t, 5*time.Minute, cfg.Board.CacheTTL())
	assert.Equal(t, 30*time.Second, cfg.Board.LoaderWindow())
	assert.Equal(t, "G", cfg.Shifts.DefaultCode)
	assert.False(t, cfg.Jira.Enabled())
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "8080"
auth:
  jwt_secret: file-secret
  dev_tokens: true
board:
  cache_ttl_seconds: 60
  loader_window_seconds: 10
shifts:
  default_code: H
jira:
  base_url: https://example.atlassian.net
  email: bot@example.com
  api_token: secret-token
  jql: project = WL
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.DevTokens)
	assert.Equal(t, time.Minute, cfg.Board.CacheTTL())
	assert.Equal(t, 10*time.Second, cfg.Board.LoaderWindow())
	assert.Equal(t, "H", cfg.Shifts.DefaultCode)
	assert.True(t, cfg.Jira.Enabled())
	assert.Equal(t, "@every 10m", cfg.Jira.SyncSchedule)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "8080"
auth:
  jwt_secret: file-secret
`)
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("WORKLOG_DB", "/tmp/other.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.Server.Port)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")

	path := writeConfigFile(t, `
board:
  cache_ttl_seconds: -1
`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfigFile(t, `
shifts:
  default_code: ""
`)
	_, err = Load(path)
	assert.Error(t, err)
}
