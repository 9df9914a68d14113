package modulecache

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestPostgres_Put(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS module_cache").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	c := NewPostgresWithPool(mock, "")
	require.NoError(t, c.InitSchema(context.Background()))

	mock.ExpectExec("INSERT INTO module_cache").
		WithArgs("example.org/mod", "hash1", []byte("ir"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = c.Put(context.Background(), &Entry{FullName: "example.org/mod", ContentHash: "hash1", IR: []byte("ir"), CompiledAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT content_hash, ir, compiled_at FROM module_cache").
		WithArgs("example.org/mod").
		WillReturnError(pgx.ErrNoRows)

	c := NewPostgresWithPool(mock, "")
	_, ok, err := c.Get(context.Background(), "example.org/mod", "hash1")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
