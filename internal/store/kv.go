package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetValue returns the stored value for key, or ("", nil) when absent.
// Values are decrypted transparently when at-rest encryption is enabled.
func (s *Store) GetValue(ctx context.Context, key string) (string, error) {
	var stored string
	err := s.withBusyRetry(ctx, "kv get", func() error {
		return s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&stored)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %q: %w", key, err)
	}

	value, err := s.enc.decryptIfEnabled(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value for key %q: %w", key, err)
	}
	return value, nil
}

// SetValue stores or replaces the value for key.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	stored, err := s.enc.encryptIfEnabled(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt value for key %q: %w", key, err)
	}

	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	err = s.withBusyRetry(ctx, "kv set", func() error {
		_, execErr := s.db.ExecContext(ctx, query, key, stored, time.Now().UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to store key %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes key; deleting an absent key is not an error.
func (s *Store) DeleteValue(ctx context.Context, key string) error {
	err := s.withBusyRetry(ctx, "kv delete", func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}
