package config

import (
	"os"
	"path/filepath"
	"testing"

	"tutorlink/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const minimalConfig = `{
	"api": {"baseUrl": "https://api.example.com"},
	"chat": {"url": "wss://chat.example.com/ws"},
	"database": {"path": "tutorlink.db"}
}`

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultRequestTimeoutSec, cfg.API.TimeoutSec)
	assert.Equal(t, constants.DefaultRefreshTimeoutSec, cfg.API.RefreshTimeoutSec)
	assert.Equal(t, "/auth/refresh", cfg.API.RefreshPath)
	assert.Equal(t, constants.DefaultMaxReplayAttempts, cfg.Offline.MaxReplayAttempts)
	assert.Equal(t, constants.DefaultCacheMaxAgeHours, cfg.Offline.CacheMaxAgeHours)
	assert.Equal(t, constants.DefaultChatReconnectMaxAttempts, cfg.Chat.ReconnectMaxAttempts)
	assert.Equal(t, "https://api.example.com", cfg.Connectivity.ProbeURL,
		"probe defaults to the API origin")
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_MissingAPIURL(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{
		"chat": {"url": "wss://chat.example.com/ws"},
		"database": {"path": "tutorlink.db"}
	}`))
	assert.ErrorIs(t, err, ErrMissingAPIURL)
}

func TestLoadConfig_MissingChatURL(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{
		"api": {"baseUrl": "https://api.example.com"},
		"database": {"path": "tutorlink.db"}
	}`))
	assert.ErrorIs(t, err, ErrMissingChatURL)
}

func TestLoadConfig_MissingDBPath(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{
		"api": {"baseUrl": "https://api.example.com"},
		"chat": {"url": "wss://chat.example.com/ws"}
	}`))
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TUTORLINK_API_URL", "https://staging.example.com")
	t.Setenv("TUTORLINK_DB_PATH", "staging.db")
	t.Setenv("TUTORLINK_LOG_LEVEL", "debug")
	t.Setenv("TUTORLINK_MAX_REPLAY_ATTEMPTS", "9")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.API.BaseURL)
	assert.Equal(t, "staging.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9, cfg.Offline.MaxReplayAttempts)
}

func TestLoadConfig_InvalidReplayCap(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{
		"api": {"baseUrl": "https://api.example.com"},
		"chat": {"url": "wss://chat.example.com/ws"},
		"database": {"path": "tutorlink.db"},
		"offline": {"maxReplayAttempts": -1}
	}`))
	assert.Error(t, err)
}

func TestLoadConfig_TraversalPathRejected(t *testing.T) {
	_, err := LoadConfig("../../etc/config.json")
	assert.Error(t, err)
}

func TestLoadConfig_MalformedJSON(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"api": `))
	assert.Error(t, err)
}

func TestLoadConfig_TracingNeedsEndpoint(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{
		"api": {"baseUrl": "https://api.example.com"},
		"chat": {"url": "wss://chat.example.com/ws"},
		"database": {"path": "tutorlink.db"},
		"tracing": {"enabled": true}
	}`))
	assert.Error(t, err)
}
