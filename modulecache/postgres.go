package modulecache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of *pgxpool.Pool this cache needs, kept as an
// interface so tests can swap in pashagolub/pgxmock instead of a real
// database. Adapted verbatim from store/postgres/postgres.go's DBPool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres is a durable, queryable Cache with row-level metadata. Adapted
// from store/postgres/postgres.go's checkpoint store, with the
// execution/node index dropped since a compile cache has nothing analogous
// to index by.
type Postgres struct {
	pool      DBPool
	tableName string
}

// PostgresOptions configures a Postgres-backed cache.
type PostgresOptions struct {
	ConnString string
	TableName  string // default "module_cache"
}

// NewPostgres opens a connection pool and a Postgres-backed compile cache.
func NewPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("modulecache: unable to create connection pool: %w", err)
	}
	tableName := opts.TableName
	if tableName == "" {
		tableName = "module_cache"
	}
	p := &Postgres{pool: pool, tableName: tableName}
	if err := p.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresWithPool constructs a Postgres cache around an existing pool,
// letting tests inject a pgxmock.PgxPoolIface.
func NewPostgresWithPool(pool DBPool, tableName string) *Postgres {
	if tableName == "" {
		tableName = "module_cache"
	}
	return &Postgres{pool: pool, tableName: tableName}
}

// InitSchema creates the cache table if it does not already exist.
func (p *Postgres) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			full_name    TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			ir           BYTEA NOT NULL,
			compiled_at  TIMESTAMPTZ NOT NULL
		);
	`, p.tableName)
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("modulecache: failed to create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Get(ctx context.Context, fullName, contentHash string) (*Entry, bool, error) {
	query := fmt.Sprintf(`
		SELECT content_hash, ir, compiled_at FROM %s WHERE full_name = $1
	`, p.tableName)

	var e Entry
	e.FullName = fullName
	var storedHash string
	err := p.pool.QueryRow(ctx, query, fullName).Scan(&storedHash, &e.IR, &e.CompiledAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("modulecache: failed to load entry: %w", err)
	}
	if storedHash != contentHash {
		return nil, false, nil
	}
	e.ContentHash = storedHash
	return &e, true, nil
}

func (p *Postgres) Put(ctx context.Context, entry *Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (full_name, content_hash, ir, compiled_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (full_name) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			ir = EXCLUDED.ir,
			compiled_at = EXCLUDED.compiled_at
	`, p.tableName)

	compiledAt := entry.CompiledAt
	if compiledAt.IsZero() {
		compiledAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, query, entry.FullName, entry.ContentHash, entry.IR, compiledAt)
	if err != nil {
		return fmt.Errorf("modulecache: failed to store entry: %w", err)
	}
	return nil
}

func (p *Postgres) Invalidate(ctx context.Context, fullName string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE full_name = $1", p.tableName)
	if _, err := p.pool.Exec(ctx, query, fullName); err != nil {
		return fmt.Errorf("modulecache: failed to invalidate entry: %w", err)
	}
	return nil
}
