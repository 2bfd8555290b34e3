package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "tasks.db") + "?_foreign_keys=on"
	conn, err := Connect(DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, Migrate(context.Background(), conn, DriverSQLite))
	opts = append([]Option{WithClock(stepClock())}, opts...)
	return NewStore(conn, DriverSQLite, opts...)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, Migrate(context.Background(), store.conn, DriverSQLite))
}

func TestSchema_TimestampTypePerDriver(t *testing.T) {
	assert.Contains(t, Schema(DriverPostgres), "created_at TIMESTAMPTZ NOT NULL")
	assert.Contains(t, Schema(DriverSQLite), "created_at TIMESTAMP NOT NULL")
	assert.NotContains(t, Schema(DriverSQLite), "TIMESTAMPTZ")
}

func TestIsUniqueViolation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	insert := `INSERT INTO tags (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`
	_, err := store.conn.ExecContext(ctx, insert, "t1", "alice", "work", time.Now())
	require.NoError(t, err)
	_, err = store.conn.ExecContext(ctx, insert, "t2", "alice", "work", time.Now())
	require.Error(t, err)

	assert.True(t, isUniqueViolation(err))
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`,
			"t1", "alice", "work", time.Now())
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, store.conn.QueryRow(`SELECT COUNT(*) FROM tags`).Scan(&n))
	assert.Zero(t, n)
}

func TestPageClause(t *testing.T) {
	lite := &Store{driver: DriverSQLite}
	pg := &Store{driver: DriverPostgres}

	assert.Equal(t, "", lite.pageClause(0, 0))
	assert.Equal(t, " LIMIT 10", lite.pageClause(10, 0))
	assert.Equal(t, " LIMIT 10 OFFSET 5", pg.pageClause(10, 5))
	assert.Equal(t, " LIMIT -1 OFFSET 5", lite.pageClause(0, 5))
	assert.Equal(t, " OFFSET 5", pg.pageClause(0, 5))
}
