package store

import (
	"database/sql"
	"fmt"
	"os"

	"tutorlink/internal/migrations"
	"tutorlink/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable on-device storage shared by the token store and
// the offline cache/queue service. It is the only shared mutable
// resource across concurrent requests; SQLite serializes writes.
type Store struct {
	db  *sql.DB
	enc *encryptor
}

func New(dbPath string) (*Store, error) {
	if err := security.ValidateStoragePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Store{db: db, enc: enc}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func closeQuietly(db *sql.DB) {
	_ = db.Close()
}
