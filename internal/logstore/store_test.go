package logstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pebblestore "github.com/luismedel/quiu/internal/storage/pebble"
)

var backends = []Backend{BackendPebble, BackendSQLite}

func openTestStore(t *testing.T, backend Backend, dir string) Store {
	t.Helper()
	s, err := Open(Options{Backend: backend, Dir: dir, Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend Backend)) {
	for _, b := range backends {
		b := b
		t.Run(string(b), func(t *testing.T) { fn(t, b) })
	}
}

func TestAppendAssignsGaplessOffsets(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		s := openTestStore(t, backend, t.TempDir())
		for i := 1; i <= 20; i++ {
			before := time.Now().UnixNano()
			off, err := s.Append(ctx, []byte(fmt.Sprintf("p%d", i)))
			require.NoError(t, err)
			require.Equal(t, int64(i), off)

			rec, err := s.Fetch(ctx, off)
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("p%d", i), string(rec.Payload))
			require.GreaterOrEqual(t, rec.Timestamp, before)
		}
		require.Equal(t, int64(20), s.LastOffset())
	})
}

func TestFetchRangeShortCircuits(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		s := openTestStore(t, backend, t.TempDir())
		for i := 1; i <= 100; i++ {
			_, err := s.Append(ctx, []byte(fmt.Sprintf("Input text %d", i)))
			require.NoError(t, err)
		}

		recs, err := s.FetchRange(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, recs, 10)
		for i, r := range recs {
			require.Equal(t, int64(i+1), r.Offset)
			require.Equal(t, fmt.Sprintf("Input text %d", i+1), string(r.Payload))
		}

		recs, err = s.FetchRange(ctx, 95, 10)
		require.NoError(t, err)
		require.Len(t, recs, 6)
		require.Equal(t, "Input text 95", string(recs[0].Payload))
		require.Equal(t, "Input text 100", string(recs[5].Payload))

		recs, err = s.FetchRange(ctx, 101, 10)
		require.NoError(t, err)
		require.Empty(t, recs)

		recs, err = s.FetchRange(ctx, 0, 10)
		require.NoError(t, err)
		require.Empty(t, recs)

		recs, err = s.FetchRange(ctx, 1, 0)
		require.NoError(t, err)
		require.Empty(t, recs)
	})
}

func TestFetchMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		s := openTestStore(t, backend, t.TempDir())
		_, err := s.Fetch(context.Background(), 1)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReopenRecoversCounter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		dir := t.TempDir()
		s, err := Open(Options{Backend: backend, Dir: dir})
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			_, err := s.Append(ctx, []byte("x"))
			require.NoError(t, err)
		}
		require.NoError(t, s.Close())

		s2 := openTestStore(t, backend, dir)
		require.Equal(t, int64(5), s2.LastOffset())
		off, err := s2.Append(ctx, []byte("y"))
		require.NoError(t, err)
		require.Equal(t, int64(6), off)
	})
}

func TestConcurrentAppends(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		s := openTestStore(t, backend, t.TempDir())

		const writers, each = 4, 50
		var wg sync.WaitGroup
		seen := make(chan int64, writers*each)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < each; i++ {
					off, err := s.Append(ctx, []byte("c"))
					if err != nil {
						t.Errorf("append: %v", err)
						return
					}
					seen <- off
				}
			}()
		}
		wg.Wait()
		close(seen)

		uniq := map[int64]bool{}
		for off := range seen {
			require.False(t, uniq[off], "offset %d issued twice", off)
			uniq[off] = true
		}
		require.Len(t, uniq, writers*each)
		recs, err := s.FetchRange(ctx, 1, writers*each+10)
		require.NoError(t, err)
		require.Len(t, recs, writers*each)
	})
}

func TestCloseAndDestroy(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		dir := t.TempDir() + "/chan"
		s, err := Open(Options{Backend: backend, Dir: dir})
		require.NoError(t, err)
		_, err = s.Append(ctx, []byte("x"))
		require.NoError(t, err)

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		_, err = s.Append(ctx, []byte("x"))
		require.ErrorIs(t, err, ErrClosed)

		require.NoError(t, s.Destroy())
		_, statErr := os.Stat(dir)
		require.True(t, errors.Is(statErr, os.ErrNotExist))
	})
}

func TestCancelledContext(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		s := openTestStore(t, backend, t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Append(ctx, []byte("x"))
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, int64(0), s.LastOffset())
	})
}

func TestUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "leveldb", Dir: t.TempDir()})
	require.Error(t, err)
}
