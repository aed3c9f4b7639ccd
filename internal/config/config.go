package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"tutorlink/internal/constants"
	"tutorlink/internal/models"
	"tutorlink/internal/security"

	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIURL  = models.ConfigError{Message: "missing API base URL"}
	ErrMissingChatURL = models.ConfigError{Message: "missing chat server URL"}
	ErrMissingDBPath  = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON config file, fills defaults, and applies
// environment overrides. A .env file next to the process, if present,
// is loaded first so local development does not need exported vars.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateStoragePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	// Overrides first, then defaults, so a fallback like the probe URL
	// derives from the effective API base URL.
	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	if c.Chat.URL == "" {
		return ErrMissingChatURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if err := security.ValidateStoragePath(c.Database.Path); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid database path: %v", err)}
	}
	if c.Offline.MaxReplayAttempts < 1 {
		return models.ConfigError{Message: "maxReplayAttempts must be at least 1"}
	}
	if c.Tracing.Enabled && c.Tracing.OTLPEndpoint == "" && !c.Tracing.UseStdout {
		return models.ConfigError{Message: "tracing enabled but no OTLP endpoint configured"}
	}
	return nil
}

func applyDefaults(c *models.Config) {
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = constants.DefaultRequestTimeoutSec
	}
	if c.API.RefreshTimeoutSec <= 0 {
		c.API.RefreshTimeoutSec = constants.DefaultRefreshTimeoutSec
	}
	if c.API.RefreshPath == "" {
		c.API.RefreshPath = "/auth/refresh"
	}
	if c.API.LoginPath == "" {
		c.API.LoginPath = "/auth/login"
	}
	if c.API.LogoutPath == "" {
		c.API.LogoutPath = "/auth/logout"
	}
	if c.Chat.WriteTimeoutSec <= 0 {
		c.Chat.WriteTimeoutSec = constants.DefaultChatWriteTimeoutSec
	}
	if c.Chat.ReconnectMaxAttempts <= 0 {
		c.Chat.ReconnectMaxAttempts = constants.DefaultChatReconnectMaxAttempts
	}
	if c.Connectivity.ProbeIntervalSec <= 0 {
		c.Connectivity.ProbeIntervalSec = constants.DefaultProbeIntervalSec
	}
	if c.Connectivity.ProbeTimeoutSec <= 0 {
		c.Connectivity.ProbeTimeoutSec = constants.DefaultProbeTimeoutSec
	}
	if c.Connectivity.ProbeURL == "" {
		// Probing the API origin itself answers the only question that
		// matters: can we reach our own backend.
		c.Connectivity.ProbeURL = c.API.BaseURL
	}
	if c.Offline.MaxReplayAttempts == 0 {
		c.Offline.MaxReplayAttempts = constants.DefaultMaxReplayAttempts
	}
	if c.Offline.CacheMaxAgeHours <= 0 {
		c.Offline.CacheMaxAgeHours = constants.DefaultCacheMaxAgeHours
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultRetryMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultRetryMaxAttempts
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("TUTORLINK_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if url := os.Getenv("TUTORLINK_WS_URL"); url != "" {
		c.Chat.URL = url
	}
	if path := os.Getenv("TUTORLINK_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if url := os.Getenv("TUTORLINK_PROBE_URL"); url != "" {
		c.Connectivity.ProbeURL = url
	}
	if level := os.Getenv("TUTORLINK_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if raw := os.Getenv("TUTORLINK_MAX_REPLAY_ATTEMPTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Offline.MaxReplayAttempts = n
		}
	}
}
