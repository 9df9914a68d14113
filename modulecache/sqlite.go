package modulecache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Cache backed by a single SQLite file, for a local workspace
// that wants compile results to survive between runs without standing up a
// shared service. Adapted from store/sqlite/sqlite.go's checkpoint store.
type SQLite struct {
	db        *sql.DB
	tableName string
}

// SQLiteOptions configures a SQLite-backed cache.
type SQLiteOptions struct {
	Path      string
	TableName string // default "module_cache"
}

// NewSQLite opens (creating if necessary) a SQLite-backed compile cache.
func NewSQLite(opts SQLiteOptions) (*SQLite, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("modulecache: unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "module_cache"
	}

	s := &SQLite{db: db, tableName: tableName}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			full_name    TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			ir           BLOB NOT NULL,
			compiled_at  DATETIME NOT NULL
		);
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("modulecache: failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Get(ctx context.Context, fullName, contentHash string) (*Entry, bool, error) {
	query := fmt.Sprintf(`
		SELECT content_hash, ir, compiled_at FROM %s WHERE full_name = ?
	`, s.tableName)

	var e Entry
	e.FullName = fullName
	var storedHash string
	err := s.db.QueryRowContext(ctx, query, fullName).Scan(&storedHash, &e.IR, &e.CompiledAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("modulecache: failed to load entry: %w", err)
	}
	if storedHash != contentHash {
		return nil, false, nil
	}
	e.ContentHash = storedHash
	return &e, true, nil
}

func (s *SQLite) Put(ctx context.Context, entry *Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (full_name, content_hash, ir, compiled_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(full_name) DO UPDATE SET
			content_hash = excluded.content_hash,
			ir = excluded.ir,
			compiled_at = excluded.compiled_at
	`, s.tableName)

	compiledAt := entry.CompiledAt
	if compiledAt.IsZero() {
		compiledAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, entry.FullName, entry.ContentHash, entry.IR, compiledAt)
	if err != nil {
		return fmt.Errorf("modulecache: failed to store entry: %w", err)
	}
	return nil
}

func (s *SQLite) Invalidate(ctx context.Context, fullName string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE full_name = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, fullName); err != nil {
		return fmt.Errorf("modulecache: failed to invalidate entry: %w", err)
	}
	return nil
}
