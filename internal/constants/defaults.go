package constants

// Network defaults
const (
	DefaultRequestTimeoutSec = 15
	DefaultRefreshTimeoutSec = 10
	DefaultProbeIntervalSec  = 10
	DefaultProbeTimeoutSec   = 5
)

// Retry defaults
const (
	DefaultRetryInitialBackoffMs = 500
	DefaultRetryMaxBackoffMs     = 30000
	DefaultRetryMaxAttempts      = 5
	DefaultStorageRetryAttempts  = 3
	DefaultStorageBackoffMs      = 50
	DefaultStorageMaxBackoffMs   = 500
)

// Offline queue defaults
const (
	DefaultMaxReplayAttempts = 5
	DefaultCacheMaxAgeHours  = 72
)

// Chat defaults
const (
	DefaultChatReconnectMaxAttempts = 10
	DefaultChatWriteTimeoutSec      = 10
	DefaultChatSeenMessageLimit     = 512
)

// Circuit breaker defaults for the live network path
const (
	DefaultBreakerMaxFailures = 3
	DefaultBreakerCooldownSec = 20
)

// Token store keys
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	UserProfileKey  = "user_profile"
)

// Encryption parameters for at-rest token encryption
const (
	EncryptionSalt       = "tutorlink-store-salt-v1"
	EncryptionIterations = 100000
	EncryptionKeySize    = 32
	EncryptionNonceSize  = 12
)

// Header set on responses served from the offline cache
const StaleHeader = "X-Tutorlink-Stale"

const DefaultGracefulShutdownSec = 10
