package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

// DefaultIngestTimeout bounds a single ingestion run, including the provider fetch.
const DefaultIngestTimeout = 2 * time.Minute

var _ Store = (*SqliteStore)(nil)

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) func(*SqliteStore) {
	return func(s *SqliteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIngestTimeout sets the upper bound on a single ingestion run.
func WithIngestTimeout(timeout time.Duration) func(*SqliteStore) {
	return func(s *SqliteStore) {
		if timeout > 0 {
			s.ingestTimeout = timeout
		}
	}
}

// WithLockPath overrides the path of the cross-process ingestion lock file, which
// defaults to the database path with a ".lock" suffix.
func WithLockPath(path string) func(*SqliteStore) {
	return func(s *SqliteStore) {
		if path != "" {
			s.lock = flock.New(path)
		}
	}
}

// SqliteStore is a Store backed by a SQLite database file
type SqliteStore struct {
	dbPath   string
	provider telemetry.Provider
	logger   *slog.Logger

	ingestTimeout time.Duration
	ingestGroup   singleflight.Group
	ingestSem     chan struct{}
	lock          *flock.Flock

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store using the Sqlite database at dbPath. Connections are
// opened and the schema is migrated lazily, on first use. The provider is only
// contacted for sessions which are not yet stored; it may be nil for read-only use.
func NewSqliteStore(dbPath string, provider telemetry.Provider, opts ...func(*SqliteStore)) *SqliteStore {
	s := &SqliteStore{
		dbPath:        dbPath,
		provider:      provider,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		ingestTimeout: DefaultIngestTimeout,
		ingestSem:     make(chan struct{}, 1),
		lock:          flock.New(dbPath + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		// SQLite allows a single writer
		db.SetMaxOpenConns(1)

		if err = migrateUp(db, s.logger); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// the schema must exist before a read-only connection can query it
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
