package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tutorlink/internal/constants"
)

// withBusyRetry retries a storage operation on transient SQLite errors.
// Constraint and schema failures are surfaced immediately.
func (s *Store) withBusyRetry(ctx context.Context, operationName string, operation func() error) error {
	var lastErr error

	maxAttempts := constants.DefaultStorageRetryAttempts
	backoff := time.Duration(constants.DefaultStorageBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(constants.DefaultStorageMaxBackoffMs) * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableStorageError(err) {
			return err
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

func isRetryableStorageError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return true
	}
	if strings.Contains(msg, "disk I/O error") {
		return true
	}
	return false
}
