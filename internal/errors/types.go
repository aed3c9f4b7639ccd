package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Transport errors: the server was not reachable at all.
	// These are the only errors the request adapter recovers from.
	ErrCodeNetwork ErrorCode = "NETWORK"
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// Application errors: the server was reachable and answered with
	// a non-2xx status. Never cached, never queued.
	ErrCodeAPIError ErrorCode = "API_ERROR"

	// Auth errors
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION"
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"

	// Offline errors
	ErrCodeNoOfflineData ErrorCode = "NO_OFFLINE_DATA"

	// Storage errors
	ErrCodeStorage ErrorCode = "STORAGE"

	// Chat transport errors
	ErrCodeChatTransport ErrorCode = "CHAT_TRANSPORT"

	// Validation / internal
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Retryable   bool                   `json:"retryable"`
	UserMessage string                 `json:"user_message,omitempty"`

	// Status and Body carry the server response for API_ERROR so
	// callers can inspect the application-level failure verbatim.
	Status int    `json:"status,omitempty"`
	Body   []byte `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets a user-friendly message
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapRetryable wraps an error and marks it as retryable
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsNetworkClass reports whether the server was unreachable (as opposed
// to reachable but answering with an error status). Only network-class
// failures may trigger cache fallback or mutation queueing.
func IsNetworkClass(err error) bool {
	code := GetCode(err)
	return code == ErrCodeNetwork || code == ErrCodeTimeout
}

// GetUserMessage extracts a user-friendly message from an error
func GetUserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return "An internal error occurred"
}
