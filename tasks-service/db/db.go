package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Driver names accepted by Connect and NewStore.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// sqliteUnicode is the sqlite3 driver with LOWER replaced by strings.ToLower;
// the built-in only folds ASCII.
const sqliteUnicode = "sqlite3_unicode"

func init() {
	sql.Register(sqliteUnicode, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
}

func Connect(driverName, dsn string) (*sql.DB, error) {
	openName := driverName
	if driverName == DriverSQLite {
		openName = sqliteUnicode
	}
	db, err := sql.Open(openName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if driverName == DriverSQLite {
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Store owns the connection pool and the settings shared by the repositories.
type Store struct {
	conn      *sql.DB
	driver    string
	now       func() time.Time
	autoPrune bool
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithAutoPrune deletes orphan tags in the same transaction whenever a task's
// tags are replaced or a task is deleted.
func WithAutoPrune(enabled bool) Option {
	return func(s *Store) { s.autoPrune = enabled }
}

func NewStore(conn *sql.DB, driver string, opts ...Option) *Store {
	s := &Store{
		conn:   conn,
		driver: driver,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// newID generates a UUID v7 so ids sort by creation time.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
