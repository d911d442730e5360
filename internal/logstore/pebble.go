package logstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/luismedel/quiu/internal/storage/pebble"
)

// PebbleStore keeps one Pebble database per channel directory.
type PebbleStore struct {
	dir string
	db  *pebblestore.DB

	last atomic.Int64

	// mu orders Close/Destroy after in-flight operations.
	mu     sync.RWMutex
	closed bool
}

// OpenPebble opens the Pebble-backed store in opts.Dir.
func OpenPebble(opts Options) (*PebbleStore, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("logstore: create dir: %w", err)
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.Dir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	s := &PebbleStore{dir: opts.Dir, db: db}

	k, err := db.LastKey(entryPrefix, entryEnd)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("logstore: recover offset: %w", err)
	}
	if k != nil {
		off, ok := OffsetFromKey(k)
		if !ok {
			_ = db.Close()
			return nil, fmt.Errorf("logstore: unexpected key %x", k)
		}
		s.last.Store(off)
	}
	return s, nil
}

func (s *PebbleStore) Append(ctx context.Context, payload []byte) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	off := s.last.Add(1)
	if err := s.db.Set(ctx, KeyEntry(off), EncodeRecord(time.Now().UnixNano(), payload)); err != nil {
		return 0, fmt.Errorf("logstore: append offset %d: %w", off, err)
	}
	return off, nil
}

func (s *PebbleStore) Fetch(ctx context.Context, offset int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if offset < 1 {
		return Record{}, ErrNotFound
	}
	val, err := s.db.Get(KeyEntry(offset))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("logstore: fetch offset %d: %w", offset, err)
	}
	ts, payload, ok := DecodeRecord(val)
	if !ok {
		return Record{}, fmt.Errorf("%w: offset %d", ErrCorrupt, offset)
	}
	return Record{Offset: offset, Timestamp: ts, Payload: payload}, nil
}

func (s *PebbleStore) FetchRange(ctx context.Context, offset int64, count int) ([]Record, error) {
	if count <= 0 || offset < 1 {
		return []Record{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: KeyEntry(offset),
		UpperBound: KeyEntry(rangeEnd(offset, count)),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	out := make([]Record, 0, min(count, 256))
	expect := offset
	for ok := it.First(); ok; ok = it.Next() {
		off, valid := OffsetFromKey(it.Key())
		if !valid || off != expect {
			break
		}
		ts, payload, ok := DecodeRecord(it.Value())
		if !ok {
			return out, fmt.Errorf("%w: offset %d", ErrCorrupt, off)
		}
		out = append(out, Record{Offset: off, Timestamp: ts, Payload: payload})
		expect++
		if len(out) == count {
			break
		}
	}
	if err := it.Error(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *PebbleStore) LastOffset() int64 { return s.last.Load() }

func (s *PebbleStore) Path() string { return s.dir }

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *PebbleStore) Destroy() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("logstore: remove %s: %w", s.dir, err)
	}
	return nil
}
