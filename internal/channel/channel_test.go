package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/luismedel/quiu/internal/logstore"
	"github.com/luismedel/quiu/internal/wal"
)

func openTestChannel(t *testing.T, dir string) *Channel {
	t.Helper()
	ch, err := Open(Options{ID: uuid.New(), Name: "test", StoragePath: dir})
	require.NoError(t, err)
	t.Cleanup(ch.Dispose)
	return ch
}

func TestOpenValidates(t *testing.T) {
	_, err := Open(Options{StoragePath: t.TempDir()})
	require.Error(t, err)
	_, err = Open(Options{ID: uuid.New()})
	require.Error(t, err)
}

func TestAppendFetch(t *testing.T) {
	ctx := context.Background()
	ch := openTestChannel(t, filepath.Join(t.TempDir(), "c"))

	for i := 1; i <= 100; i++ {
		off, err := ch.Append(ctx, []byte(fmt.Sprintf("Input text %d", i)))
		require.NoError(t, err)
		require.Equal(t, int64(i), off)
	}
	rec, err := ch.Fetch(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "Input text 42", string(rec.Payload))

	recs, err := ch.FetchRange(ctx, 95, 10)
	require.NoError(t, err)
	require.Len(t, recs, 6)
	require.Equal(t, int64(100), ch.LastOffset())

	_, err = ch.Fetch(ctx, 101)
	require.ErrorIs(t, err, logstore.ErrNotFound)
}

func TestNameIsMetadata(t *testing.T) {
	ch := openTestChannel(t, t.TempDir())
	ch.SetName("renamed")
	require.Equal(t, "renamed", ch.Name())
}

func TestDisposeIdempotent(t *testing.T) {
	ch := openTestChannel(t, t.TempDir())
	ch.Dispose()
	ch.Dispose()
	_, err := ch.Append(context.Background(), []byte("x"))
	require.ErrorIs(t, err, logstore.ErrClosed)
}

func TestPruneData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "c")
	ch := openTestChannel(t, dir)
	_, err := ch.Append(context.Background(), []byte("x"))
	require.NoError(t, err)

	require.True(t, ch.PruneData())
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

// Two writers share one queue and wait for each record. A fresh store opened
// on the same directory must see all 1000 rows.
func TestSharedQueueTwoWriters(t *testing.T) {
	for _, backend := range []logstore.Backend{logstore.BackendPebble, logstore.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "c")
			ch, err := Open(Options{ID: uuid.New(), StoragePath: dir, Store: logstore.Options{Backend: backend}})
			require.NoError(t, err)

			q := wal.New[Entry](Persist, wal.Options{})
			require.NoError(t, q.Start())

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var wg sync.WaitGroup
			for w := 0; w < 2; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 500; i++ {
						payload := []byte(fmt.Sprintf("w%d-%d", w, i))
						c, err := q.Enqueue(Entry{Channel: ch, Payload: payload}, true)
						if err != nil {
							t.Errorf("enqueue: %v", err)
							return
						}
						if err := c.Wait(ctx); err != nil {
							t.Errorf("wait: %v", err)
							return
						}
					}
				}(w)
			}
			wg.Wait()
			q.Stop(true)
			require.NoError(t, q.Wait(ctx))
			require.Equal(t, int64(1000), ch.LastOffset())
			ch.Dispose()

			store, err := logstore.Open(logstore.Options{Backend: backend, Dir: dir})
			require.NoError(t, err)
			defer store.Close()
			require.Equal(t, int64(1000), store.LastOffset())
			recs, err := store.FetchRange(ctx, 1, 2000)
			require.NoError(t, err)
			require.Len(t, recs, 1000)
		})
	}
}

func TestPersistReportsClosedChannel(t *testing.T) {
	ch := openTestChannel(t, t.TempDir())
	ch.Dispose()
	err := Persist(context.Background(), Entry{Channel: ch, Payload: []byte("x")})
	require.ErrorIs(t, err, logstore.ErrClosed)
}
