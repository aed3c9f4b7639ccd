package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewNetworkError creates a transport-level error (server unreachable,
// connection reset, DNS failure). Retryable by definition.
func NewNetworkError(err error, endpoint string) *AppError {
	return WrapRetryable(err, ErrCodeNetwork, "network request failed").
		WithContext("endpoint", endpoint).
		WithUserMessage("Connection problem, working offline")
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(err error, operation string) *AppError {
	return WrapRetryable(err, ErrCodeTimeout, fmt.Sprintf("%s timed out", operation)).
		WithContext("operation", operation).
		WithUserMessage("Operation timed out, please try again")
}

// NewAPIError creates an application-level error from a reachable
// server's non-2xx response. It is never retryable by the adapter;
// the caller sees the original status and body.
func NewAPIError(endpoint string, status int, body []byte) *AppError {
	appErr := New(ErrCodeAPIError, fmt.Sprintf("API returned status %d", status)).
		WithContext("endpoint", endpoint).
		WithContext("status_code", status)
	appErr.Status = status
	appErr.Body = body
	return appErr
}

// NewNoOfflineDataError is raised for GETs with no cached entry while
// offline. Distinct from NETWORK so the UI can show "no data available"
// instead of "retry".
func NewNoOfflineDataError(signature string) *AppError {
	return New(ErrCodeNoOfflineData, "no cached data for request").
		WithContext("signature", signature).
		WithUserMessage("No offline data available")
}

// NewSessionExpiredError is surfaced when token refresh is impossible
// or fails; local session data has been cleared by the time callers
// see it.
func NewSessionExpiredError(err error) *AppError {
	return Wrap(err, ErrCodeSessionExpired, "session expired").
		WithUserMessage("Your session has expired, please log in again")
}

// NewStorageError creates a storage error with operation context
func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("storage %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Local storage operation failed")
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewChatTransportError creates a realtime transport error
func NewChatTransportError(err error, detail string) *AppError {
	return WrapRetryable(err, ErrCodeChatTransport, detail).
		WithUserMessage("Chat connection problem")
}
