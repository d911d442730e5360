package wal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *recorder) persist(_ context.Context, v int) error {
	r.mu.Lock()
	r.seen = append(r.seen, v)
	r.mu.Unlock()
	return nil
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := New[int]((&recorder{}).persist, Options{})
	_, err := q.Enqueue(1, true)
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestStartTwice(t *testing.T) {
	q := New[int]((&recorder{}).persist, Options{})
	require.NoError(t, q.Start())
	require.ErrorIs(t, q.Start(), ErrAlreadyRunning)
	q.Stop(false)
}

func TestFIFOAndCompletion(t *testing.T) {
	r := &recorder{}
	q := New[int](r.persist, Options{})
	require.NoError(t, q.Start())
	defer q.Stop(false)

	var last *Completion
	for i := 0; i < 1000; i++ {
		c, err := q.Enqueue(i, i == 999)
		require.NoError(t, err)
		if i < 999 {
			assert.Nil(t, c)
		}
		last = c
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, last.Wait(ctx))

	seen := r.snapshot()
	require.Len(t, seen, 1000)
	for i, v := range seen {
		require.Equal(t, i, v)
	}
	st := q.Stats()
	require.Equal(t, uint64(1000), st.Enqueued)
	require.Equal(t, uint64(1000), st.Persisted)
	require.True(t, st.Running)
}

func TestPersistFailureFailsCompletion(t *testing.T) {
	boom := errors.New("disk full")
	q := New[int](func(_ context.Context, v int) error {
		if v == 2 {
			return boom
		}
		return nil
	}, Options{})
	require.NoError(t, q.Start())
	defer q.Stop(false)

	c1, _ := q.Enqueue(1, true)
	c2, _ := q.Enqueue(2, true)
	c3, _ := q.Enqueue(3, true)
	ctx := context.Background()

	require.NoError(t, c1.Wait(ctx))
	err := c2.Wait(ctx)
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, boom)
	// the failed item is not retried and does not block later ones
	require.NoError(t, c3.Wait(ctx))
	require.Equal(t, uint64(1), q.Stats().Failed)
}

func TestStopWaitDrains(t *testing.T) {
	release := make(chan struct{})
	r := &recorder{}
	q := New[int](func(ctx context.Context, v int) error {
		<-release
		return r.persist(ctx, v)
	}, Options{})
	require.NoError(t, q.Start())

	var cs []*Completion
	for i := 0; i < 10; i++ {
		c, err := q.Enqueue(i, true)
		require.NoError(t, err)
		cs = append(cs, c)
	}
	q.Stop(true)
	_, err := q.Enqueue(99, false)
	require.ErrorIs(t, err, ErrNotRunning)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	for _, c := range cs {
		require.NoError(t, c.Err())
	}
	require.Len(t, r.snapshot(), 10)
}

func TestStopNoWaitDiscards(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	q := New[int](func(ctx context.Context, v int) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}, Options{})
	require.NoError(t, q.Start())

	first, _ := q.Enqueue(0, true)
	<-started
	var rest []*Completion
	for i := 1; i <= 5; i++ {
		c, err := q.Enqueue(i, true)
		require.NoError(t, err)
		rest = append(rest, c)
	}

	q.Stop(false)
	for _, c := range rest {
		<-c.Done()
		require.ErrorIs(t, c.Err(), ErrDiscarded)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	require.NoError(t, first.Wait(ctx))
	require.Equal(t, uint64(5), q.Stats().Discarded)
	require.Equal(t, 0, q.Len())
}

func TestStopIdleQueue(t *testing.T) {
	q := New[int]((&recorder{}).persist, Options{})
	q.Stop(true)
	require.NoError(t, q.Wait(context.Background()))
	require.ErrorIs(t, q.Start(), ErrStopped)
}

func TestStartAfterStop(t *testing.T) {
	for _, wait := range []bool{true, false} {
		q := New[int]((&recorder{}).persist, Options{})
		require.NoError(t, q.Start())
		q.Stop(wait)
		require.NoError(t, q.Wait(context.Background()))
		require.ErrorIs(t, q.Start(), ErrStopped, "wait=%v", wait)
	}
}

func TestPersistSeesParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	q := New[int](func(ctx context.Context, _ int) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, Options{Context: parent})
	require.NoError(t, q.Start())
	defer q.Stop(false)

	c, err := q.Enqueue(1, true)
	require.NoError(t, err)
	<-started
	cancel()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	err = c.Wait(ctx)
	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCompletionWaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := New[int](func(context.Context, int) error { <-block; return nil }, Options{})
	require.NoError(t, q.Start())
	defer func() {
		close(block)
		q.Stop(false)
	}()

	c, err := q.Enqueue(1, true)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
	require.NoError(t, c.Err())
}

func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	type item struct{ producer, seq int }
	var mu sync.Mutex
	var got []item
	q := New[item](func(_ context.Context, it item) error {
		mu.Lock()
		got = append(got, it)
		mu.Unlock()
		return nil
	}, Options{})
	require.NoError(t, q.Start())

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				_, err := q.Enqueue(item{p, i}, false)
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()
	q.Stop(true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	require.Len(t, got, 1000)
	next := map[int]int{}
	for _, it := range got {
		require.Equal(t, next[it.producer], it.seq)
		next[it.producer]++
	}
}
