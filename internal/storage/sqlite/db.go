package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Synchronous mirrors the pebble fsync modes onto SQLite's PRAGMA synchronous.
type Synchronous string

const (
	SyncFull   Synchronous = "FULL"
	SyncNormal Synchronous = "NORMAL"
	SyncOff    Synchronous = "OFF"
)

// Options configures the SQLite wrapper.
type Options struct {
	// Path is the database file. Its directory must exist.
	Path        string
	Synchronous Synchronous
	// BusyTimeout bounds lock waits inside SQLite.
	BusyTimeout time.Duration
	Metrics     MetricsHook
}

// MetricsHook matches pebblestore.MetricsHook so one collector serves both.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveWrite(time.Duration, int)            {}
func (noopMetrics) ObserveRead(time.Duration, int)             {}
func (noopMetrics) ObserveBatchCommit(time.Duration, int, int) {}

// DB is a single-connection SQLite handle with a prepared statement cache.
type DB struct {
	sql     *sql.DB
	path    string
	metrics MetricsHook

	mu    sync.Mutex
	stmts map[string]*sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// Open opens (creating if needed) the database at opts.Path in WAL journal mode.
func Open(opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite: Options.Path is required")
	}
	if opts.Synchronous == "" {
		opts.Synchronous = SyncFull
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", string(opts.Synchronous))
	q.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
	dsn := "file:" + opts.Path + "?" + q.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", opts.Path, err)
	}
	// Writers serialize anyway; one connection keeps the offset counter and
	// the table in lockstep.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", opts.Path, err)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &DB{
		sql:     db,
		path:    opts.Path,
		metrics: metrics,
		stmts:   make(map[string]*sql.Stmt),
	}, nil
}

// Path is the database file path.
func (db *DB) Path() string { return db.path }

// Migrate runs schema statements in order.
func (db *DB) Migrate(ctx context.Context, stmts ...string) error {
	for _, s := range stmts {
		if _, err := db.sql.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

func (db *DB) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s, ok := db.stmts[query]; ok {
		return s, nil
	}
	s, err := db.sql.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	db.stmts[query] = s
	return s, nil
}

// Exec runs a write statement. bytes is reported to the metrics hook.
func (db *DB) Exec(ctx context.Context, bytes int, query string, args ...any) (sql.Result, error) {
	s, err := db.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := s.ExecContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	db.metrics.ObserveWrite(time.Since(start), bytes)
	return res, nil
}

// QueryRow runs a single-row query.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	s, err := db.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.QueryRowContext(ctx, args...), nil
}

// Query runs a multi-row query. The caller closes the rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s, err := db.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.QueryContext(ctx, args...)
}

// ObserveRead lets callers report bytes scanned from a query.
func (db *DB) ObserveRead(elapsed time.Duration, bytes int) {
	db.metrics.ObserveRead(elapsed, bytes)
}

// Close finalizes cached statements and closes the handle. Idempotent.
func (db *DB) Close() error {
	if db == nil || db.sql == nil {
		return nil
	}
	db.closeOnce.Do(func() {
		db.mu.Lock()
		for q, s := range db.stmts {
			_ = s.Close()
			delete(db.stmts, q)
		}
		db.mu.Unlock()
		db.closeErr = db.sql.Close()
	})
	return db.closeErr
}
