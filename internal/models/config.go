package models

// Config is the top-level configuration for the tutorlink client.
type Config struct {
	API          APIConfig          `json:"api"`
	Chat         ChatConfig         `json:"chat"`
	Database     DatabaseConfig     `json:"database"`
	Connectivity ConnectivityConfig `json:"connectivity"`
	Offline      OfflineConfig      `json:"offline"`
	Retry        RetryConfig        `json:"retry"`
	Tracing      TracingConfig      `json:"tracing"`
	LogLevel     string             `json:"logLevel"`
}

// APIConfig configures the REST client facade.
type APIConfig struct {
	BaseURL           string `json:"baseUrl"`
	TimeoutSec        int    `json:"timeoutSec"`
	RefreshTimeoutSec int    `json:"refreshTimeoutSec"`
	RefreshPath       string `json:"refreshPath"`
	LoginPath         string `json:"loginPath"`
	LogoutPath        string `json:"logoutPath"`
}

// ChatConfig configures the realtime chat transport.
type ChatConfig struct {
	URL                  string `json:"url"`
	WriteTimeoutSec      int    `json:"writeTimeoutSec"`
	ReconnectMaxAttempts int    `json:"reconnectMaxAttempts"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// ConnectivityConfig configures the reachability probe.
type ConnectivityConfig struct {
	ProbeURL         string `json:"probeUrl"`
	ProbeIntervalSec int    `json:"probeIntervalSec"`
	ProbeTimeoutSec  int    `json:"probeTimeoutSec"`
}

// OfflineConfig configures cache retention and queue replay.
type OfflineConfig struct {
	MaxReplayAttempts int `json:"maxReplayAttempts"`
	CacheMaxAgeHours  int `json:"cacheMaxAgeHours"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
