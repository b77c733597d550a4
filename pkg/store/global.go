package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/sefs-dev/sefs/pkg/sqliteutil"
)

// Settings keys persisted in the global store (spec.md §6: provider
// selection, credentials, and the currently managed root survive
// daemon restarts).
const (
	SettingProviderKind = "provider_kind"
	SettingProviderHost = "provider_host"
	SettingEmbedModel   = "embed_model"
	SettingLLMModel     = "llm_model"
	SettingAPIKey       = "api_key"
	SettingRootFolder   = "root_folder_path"
)

// GlobalStore holds settings shared across every managed root: which
// embedding provider is active, its credentials, and the root folder
// path to resume on restart. One process runs exactly one GlobalStore.
type GlobalStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenGlobalStore opens (creating if needed) the global settings
// database at path and ensures its schema exists.
func OpenGlobalStore(path string) (*GlobalStore, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("open global store: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init global store schema: %w", err)
	}
	return &GlobalStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *GlobalStore) Close() error {
	return s.db.Close()
}

// Get returns the value for key, and whether it was present.
func (s *GlobalStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts key to value.
func (s *GlobalStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// All returns every setting as a map, used when the engine boots and
// needs to reconstruct the active provider and last-known root.
func (s *GlobalStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
