package models

import "time"

// CachedResponse is a successful GET response persisted for offline reads.
// The most recent successful online response wins (last-write-wins).
type CachedResponse struct {
	Signature  string            `json:"signature"`
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	CachedAt   time.Time         `json:"cachedAt"`
}

// QueueStatus tracks the replay lifecycle of a queued mutation.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusDead    QueueStatus = "dead"
)

// QueuedMutation is a write request deferred for replay because
// connectivity was absent or a network-level error occurred.
type QueuedMutation struct {
	ID         string            `json:"id"`
	Signature  string            `json:"signature"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	Attempts   int               `json:"attempts"`
	Status     QueueStatus       `json:"status"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}
