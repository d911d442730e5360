package logstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	pebblestore "github.com/luismedel/quiu/internal/storage/pebble"
	sqlitestore "github.com/luismedel/quiu/internal/storage/sqlite"
)

// SQLiteFile is the database file name inside a channel directory.
const SQLiteFile = "data.db"

const (
	sqlCreate = `create table if not exists records (
		seq integer primary key,
		ts integer not null,
		payload blob not null
	)`
	sqlInsert = `insert into records (seq, ts, payload) values ($1, $2, $3)`
	sqlGet    = `select ts, payload from records where seq = $1`
	sqlRange  = `select seq, ts, payload from records where seq >= $1 and seq < $2 order by seq`
	sqlMax    = `select coalesce(max(seq), 0) from records`
)

// SQLiteStore keeps one SQLite database per channel directory.
type SQLiteStore struct {
	dir string
	db  *sqlitestore.DB

	last atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func syncFor(mode pebblestore.FsyncMode) sqlitestore.Synchronous {
	switch mode {
	case pebblestore.FsyncModeNever:
		return sqlitestore.SyncOff
	case pebblestore.FsyncModeInterval:
		return sqlitestore.SyncNormal
	default:
		return sqlitestore.SyncFull
	}
}

// OpenSQLite opens the SQLite-backed store in opts.Dir.
func OpenSQLite(opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("logstore: create dir: %w", err)
	}
	var metrics sqlitestore.MetricsHook
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}
	db, err := sqlitestore.Open(sqlitestore.Options{
		Path:        filepath.Join(opts.Dir, SQLiteFile),
		Synchronous: syncFor(opts.Fsync),
		Metrics:     metrics,
	})
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := db.Migrate(ctx, sqlCreate); err != nil {
		_ = db.Close()
		return nil, err
	}
	row, err := db.QueryRow(ctx, sqlMax)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	var max int64
	if err := row.Scan(&max); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("logstore: recover offset: %w", err)
	}
	s := &SQLiteStore{dir: opts.Dir, db: db}
	s.last.Store(max)
	return s, nil
}

func (s *SQLiteStore) Append(ctx context.Context, payload []byte) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	off := s.last.Add(1)
	if payload == nil {
		payload = []byte{}
	}
	if _, err := s.db.Exec(ctx, len(payload)+16, sqlInsert, off, time.Now().UnixNano(), payload); err != nil {
		return 0, fmt.Errorf("logstore: append offset %d: %w", off, err)
	}
	return off, nil
}

func (s *SQLiteStore) Fetch(ctx context.Context, offset int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, ErrClosed
	}
	start := time.Now()
	row, err := s.db.QueryRow(ctx, sqlGet, offset)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Offset: offset}
	if err := row.Scan(&rec.Timestamp, &rec.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("logstore: fetch offset %d: %w", offset, err)
	}
	s.db.ObserveRead(time.Since(start), len(rec.Payload))
	return rec, nil
}

func (s *SQLiteStore) FetchRange(ctx context.Context, offset int64, count int) ([]Record, error) {
	if count <= 0 || offset < 1 {
		return []Record{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	start := time.Now()
	rows, err := s.db.Query(ctx, sqlRange, offset, rangeEnd(offset, count))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, min(count, 256))
	expect, bytes := offset, 0
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Offset, &rec.Timestamp, &rec.Payload); err != nil {
			return out, fmt.Errorf("logstore: scan: %w", err)
		}
		if rec.Offset != expect {
			break
		}
		out = append(out, rec)
		bytes += len(rec.Payload)
		expect++
	}
	if err := rows.Err(); err != nil {
		return out, err
	}
	s.db.ObserveRead(time.Since(start), bytes)
	return out, nil
}

func (s *SQLiteStore) LastOffset() int64 { return s.last.Load() }

func (s *SQLiteStore) Path() string { return s.dir }

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) Destroy() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("logstore: remove %s: %w", s.dir, err)
	}
	return nil
}
