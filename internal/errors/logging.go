package errors

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// LogError logs an error with its structured AppError context attached.
func LogError(logger *logrus.Logger, err error, message string) {
	entryFor(logger, err).Error(message)
}

// LogRetryableError logs a retryable error at warn level, non-retryable at error level
func LogRetryableError(logger *logrus.Logger, err error, message string) {
	if IsRetryable(err) {
		entryFor(logger, err).Warn(message)
	} else {
		entryFor(logger, err).Error(message)
	}
}

func entryFor(logger *logrus.Logger, err error) *logrus.Entry {
	entry := logger.WithError(err)

	var appErr *AppError
	if errors.As(err, &appErr) {
		entry = entry.WithFields(logrus.Fields{
			"error_code": appErr.Code,
			"retryable":  appErr.Retryable,
		})
		for k, v := range appErr.Context {
			entry = entry.WithField(k, v)
		}
	}

	return entry
}
