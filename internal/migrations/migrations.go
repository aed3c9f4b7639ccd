package migrations

// Schema is embedded rather than read from disk: the store is opened by
// a client library and cannot assume a scripts directory at runtime.
const initialSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS response_cache (
	signature TEXT PRIMARY KEY,
	status_code INTEGER NOT NULL,
	headers TEXT NOT NULL DEFAULT '{}',
	body BLOB,
	cached_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mutation_queue (
	id TEXT PRIMARY KEY,
	signature TEXT NOT NULL UNIQUE,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	headers TEXT NOT NULL DEFAULT '{}',
	body BLOB,
	attempts INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	enqueued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mutation_queue_status_enqueued
	ON mutation_queue(status, enqueued_at);
`

// GetInitialSchema returns the schema applied on store open.
func GetInitialSchema() string {
	return initialSchema
}
