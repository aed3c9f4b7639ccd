package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tutorlink/internal/models"
)

// SaveCachedResponse upserts a cached GET response keyed by request
// signature. Last write wins.
func (s *Store) SaveCachedResponse(ctx context.Context, resp *models.CachedResponse) error {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal cached headers: %w", err)
	}

	query := `
		INSERT INTO response_cache (signature, status_code, headers, body, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			status_code = excluded.status_code,
			headers = excluded.headers,
			body = excluded.body,
			cached_at = excluded.cached_at
	`
	err = s.withBusyRetry(ctx, "cache save", func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			resp.Signature, resp.StatusCode, string(headers), resp.Body, resp.CachedAt.UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to save cached response: %w", err)
	}
	return nil
}

// GetCachedResponse returns the cached entry for a signature, or nil on miss.
func (s *Store) GetCachedResponse(ctx context.Context, signature string) (*models.CachedResponse, error) {
	query := `
		SELECT signature, status_code, headers, body, cached_at
		FROM response_cache WHERE signature = ?
	`

	var headers string
	resp := &models.CachedResponse{}
	err := s.withBusyRetry(ctx, "cache get", func() error {
		return s.db.QueryRowContext(ctx, query, signature).Scan(
			&resp.Signature, &resp.StatusCode, &headers, &resp.Body, &resp.CachedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached response: %w", err)
	}

	if err := json.Unmarshal([]byte(headers), &resp.Headers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached headers: %w", err)
	}
	return resp, nil
}

// PruneCache deletes cache entries older than the cutoff and reports
// how many were removed.
func (s *Store) PruneCache(ctx context.Context, olderThan time.Time) (int64, error) {
	var pruned int64
	err := s.withBusyRetry(ctx, "cache prune", func() error {
		res, execErr := s.db.ExecContext(ctx,
			`DELETE FROM response_cache WHERE cached_at < ?`, olderThan.UTC())
		if execErr != nil {
			return execErr
		}
		pruned, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return pruned, nil
}

// EnqueueMutation appends a mutation to the replay queue. A signature
// already queued is refreshed in place so the queue never holds the
// same request twice.
func (s *Store) EnqueueMutation(ctx context.Context, m *models.QueuedMutation) error {
	headers, err := json.Marshal(m.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal queued headers: %w", err)
	}

	query := `
		INSERT INTO mutation_queue (id, signature, method, url, headers, body, attempts, status, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			method = excluded.method,
			url = excluded.url,
			headers = excluded.headers,
			body = excluded.body
	`
	err = s.withBusyRetry(ctx, "queue enqueue", func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			m.ID, m.Signature, m.Method, m.URL, string(headers), m.Body,
			string(models.QueueStatusPending), m.EnqueuedAt.UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return nil
}

// PendingMutations returns queued mutations in enqueue order.
func (s *Store) PendingMutations(ctx context.Context) ([]models.QueuedMutation, error) {
	return s.mutationsByStatus(ctx, models.QueueStatusPending)
}

// DeadLetters returns mutations that exhausted their replay budget.
func (s *Store) DeadLetters(ctx context.Context) ([]models.QueuedMutation, error) {
	return s.mutationsByStatus(ctx, models.QueueStatusDead)
}

func (s *Store) mutationsByStatus(ctx context.Context, status models.QueueStatus) ([]models.QueuedMutation, error) {
	query := `
		SELECT id, signature, method, url, headers, body, attempts, status, enqueued_at
		FROM mutation_queue WHERE status = ?
		ORDER BY enqueued_at ASC, id ASC
	`

	var result []models.QueuedMutation
	err := s.withBusyRetry(ctx, "queue list", func() error {
		rows, queryErr := s.db.QueryContext(ctx, query, string(status))
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var m models.QueuedMutation
			var headers string
			if scanErr := rows.Scan(&m.ID, &m.Signature, &m.Method, &m.URL,
				&headers, &m.Body, &m.Attempts, &m.Status, &m.EnqueuedAt); scanErr != nil {
				return scanErr
			}
			if unmarshalErr := json.Unmarshal([]byte(headers), &m.Headers); unmarshalErr != nil {
				return unmarshalErr
			}
			result = append(result, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mutations: %w", err)
	}
	return result, nil
}

// DeleteMutation removes a replayed mutation from the queue.
func (s *Store) DeleteMutation(ctx context.Context, id string) error {
	err := s.withBusyRetry(ctx, "queue delete", func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to delete mutation: %w", err)
	}
	return nil
}

// RecordReplayFailure bumps the attempt counter and moves the item to
// the dead-letter state once maxAttempts is exhausted. Returns whether
// the item is now dead.
func (s *Store) RecordReplayFailure(ctx context.Context, id string, maxAttempts int) (bool, error) {
	var dead bool
	err := s.withBusyRetry(ctx, "queue record failure", func() error {
		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return txErr
		}
		defer func() { _ = tx.Rollback() }()

		var attempts int
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT attempts FROM mutation_queue WHERE id = ?`, id).Scan(&attempts); scanErr != nil {
			return scanErr
		}

		attempts++
		status := models.QueueStatusPending
		if attempts >= maxAttempts {
			status = models.QueueStatusDead
		}

		if _, execErr := tx.ExecContext(ctx,
			`UPDATE mutation_queue SET attempts = ?, status = ? WHERE id = ?`,
			attempts, string(status), id); execErr != nil {
			return execErr
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return commitErr
		}
		dead = status == models.QueueStatusDead
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record replay failure: %w", err)
	}
	return dead, nil
}

// QueueLength returns the number of pending mutations.
func (s *Store) QueueLength(ctx context.Context) (int, error) {
	var n int
	err := s.withBusyRetry(ctx, "queue length", func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM mutation_queue WHERE status = ?`,
			string(models.QueueStatusPending)).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}
