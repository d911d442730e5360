package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	pebblestore "github.com/luismedel/quiu/internal/storage/pebble"
)

var (
	// ErrNotFound is returned when no record exists at the requested offset.
	ErrNotFound = errors.New("logstore: record not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("logstore: store closed")
	// ErrCorrupt is returned when a stored envelope fails its checksum.
	ErrCorrupt = errors.New("logstore: corrupt record")
)

// Record is a single stored entry. Timestamp is unix nanoseconds.
type Record struct {
	Offset    int64
	Timestamp int64
	Payload   []byte
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time { return time.Unix(0, r.Timestamp) }

// Store is a per-channel, offset-addressed, append-only record sequence.
// Offsets start at 1 and are assigned by the store.
type Store interface {
	Append(ctx context.Context, payload []byte) (int64, error)
	Fetch(ctx context.Context, offset int64) (Record, error)
	// FetchRange returns the contiguous records in [offset, offset+count),
	// stopping at the first missing offset.
	FetchRange(ctx context.Context, offset int64, count int) ([]Record, error)
	LastOffset() int64
	Path() string
	// Destroy closes the store and removes its on-disk data.
	Destroy() error
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendPebble Backend = "pebble"
	BackendSQLite Backend = "sqlite"
)

// MetricsHook is satisfied by both pebblestore and sqlitestore hooks.
type MetricsHook = pebblestore.MetricsHook

// Options selects and configures a backend for one channel directory.
type Options struct {
	Backend       Backend
	Dir           string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Metrics       MetricsHook
}

// Open opens or creates the store rooted at opts.Dir, recovering the offset
// counter from existing data.
func Open(opts Options) (Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("logstore: Options.Dir is required")
	}
	switch opts.Backend {
	case BackendPebble, "":
		s, err := OpenPebble(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := OpenSQLite(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("logstore: unknown backend %q", opts.Backend)
	}
}

// rangeEnd returns offset+count clamped against overflow.
func rangeEnd(offset int64, count int) int64 {
	end := offset + int64(count)
	if end < offset {
		return 1<<63 - 1
	}
	return end
}
