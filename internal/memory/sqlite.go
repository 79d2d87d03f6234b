package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shannon-ai/shannon/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_entries_category ON memory_entries(category);
`

// SQLiteStore is the default Store backend.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a WAL-mode SQLite database at
// path and ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Set(ctx context.Context, entry model.MemoryEntry) error {
	now := time.Now()
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if entry.Category == "" {
		entry.Category = "general"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_entries (key, value, category, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		entry.Key, entry.Value, entry.Category, entry.Source, createdAt.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("memory: set: %w", err)
	}
	return nil
}

func scanEntry(row interface {
	Scan(dest ...any) error
}) (model.MemoryEntry, error) {
	var e model.MemoryEntry
	var createdAt, updatedAt int64
	if err := row.Scan(&e.Key, &e.Value, &e.Category, &e.Source, &createdAt, &updatedAt); err != nil {
		return model.MemoryEntry{}, err
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return e, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (model.MemoryEntry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, category, source, created_at, updated_at FROM memory_entries WHERE key = ?`, key)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return model.MemoryEntry{}, false, nil
	}
	if err != nil {
		return model.MemoryEntry{}, false, fmt.Errorf("memory: get: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("memory: delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]model.MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) List(ctx context.Context, category string) ([]model.MemoryEntry, error) {
	var (
		entries []model.MemoryEntry
		err     error
	)
	if category == "" {
		entries, err = s.queryEntries(ctx, `SELECT key, value, category, source, created_at, updated_at FROM memory_entries ORDER BY key`)
	} else {
		entries, err = s.queryEntries(ctx, `SELECT key, value, category, source, created_at, updated_at FROM memory_entries WHERE category = ? ORDER BY key`, category)
	}
	if err != nil {
		return nil, fmt.Errorf("memory: list: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Search(ctx context.Context, query string) ([]model.MemoryEntry, error) {
	like := "%" + strings.ToLower(query) + "%"
	entries, err := s.queryEntries(ctx,
		`SELECT key, value, category, source, created_at, updated_at FROM memory_entries
		 WHERE LOWER(key) LIKE ? OR LOWER(value) LIKE ? ORDER BY updated_at DESC`, like, like)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Export(ctx context.Context) ([]model.MemoryEntry, error) {
	entries, err := s.queryEntries(ctx, `SELECT key, value, category, source, created_at, updated_at FROM memory_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("memory: export: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
