package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logpkg "github.com/luismedel/quiu/pkg/log"
)

var (
	// ErrNotRunning is returned by Enqueue before Start or once Stop was called.
	ErrNotRunning = errors.New("wal: queue not running")
	// ErrAlreadyRunning is returned by a second Start.
	ErrAlreadyRunning = errors.New("wal: queue already started")
	// ErrStopped is returned by Start once Stop was called; a queue is not
	// restartable.
	ErrStopped = errors.New("wal: queue stopped")
	// ErrDiscarded fails completions of items dropped by Stop(false).
	ErrDiscarded = errors.New("wal: item discarded before persist")
)

// PersistError wraps the error returned by the persist function for one item.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return fmt.Sprintf("wal: persist failed: %v", e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }

// PersistFunc durably stores one item.
type PersistFunc[T any] func(ctx context.Context, item T) error

// Observer receives queue events. Optional.
type Observer interface {
	ObserveEnqueue(depth int)
	ObservePersist(elapsed time.Duration, err error)
	ObserveDiscard(n int)
}

type noopObserver struct{}

func (noopObserver) ObserveEnqueue(int)                  {}
func (noopObserver) ObservePersist(time.Duration, error) {}
func (noopObserver) ObserveDiscard(int)                  {}

// Options configures a Queue.
type Options struct {
	// Context is the parent of the context handed to the persist function.
	// Stop(false) cancels the derived context; cancelling the parent aborts
	// in-flight persists too.
	Context  context.Context
	Logger   logpkg.Logger
	Observer Observer
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateDraining
	stateStopped
)

type entry[T any] struct {
	value T
	c     *Completion
}

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Pending   int
	Enqueued  uint64
	Persisted uint64
	Failed    uint64
	Discarded uint64
	Running   bool
}

// Queue is a single-consumer FIFO persistence pipeline. Items are persisted
// strictly in enqueue order by one worker goroutine and never retried.
type Queue[T any] struct {
	persist PersistFunc[T]
	log     logpkg.Logger
	obs     Observer

	mu     sync.Mutex
	items  []entry[T]
	state  state
	signal chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	enqueued  atomic.Uint64
	persisted atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

// New creates a stopped queue. Call Start before Enqueue.
func New[T any](persist PersistFunc[T], opts Options) *Queue[T] {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Queue[T]{
		persist: persist,
		log:     opts.Logger.WithComponent("wal"),
		obs:     opts.Observer,
		signal:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker.
func (q *Queue[T]) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.state {
	case stateRunning:
		return ErrAlreadyRunning
	case stateDraining, stateStopped:
		return ErrStopped
	}
	q.state = stateRunning
	go q.run()
	q.log.Debug("queue started")
	return nil
}

// Enqueue appends item to the queue. With withCompletion the returned
// Completion is fulfilled once the item was persisted, failed or discarded;
// otherwise it is nil.
func (q *Queue[T]) Enqueue(item T, withCompletion bool) (*Completion, error) {
	var c *Completion
	if withCompletion {
		c = newCompletion()
	}
	q.mu.Lock()
	if q.state != stateRunning {
		q.mu.Unlock()
		return nil, ErrNotRunning
	}
	q.items = append(q.items, entry[T]{value: item, c: c})
	depth := len(q.items)
	q.mu.Unlock()

	q.enqueued.Add(1)
	q.obs.ObserveEnqueue(depth)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return c, nil
}

// Stop halts the queue. With wait the worker drains what is already queued
// and then exits; without it pending items are discarded and their
// completions fail with ErrDiscarded. No new items are accepted either way.
func (q *Queue[T]) Stop(wait bool) {
	q.mu.Lock()
	var pending []entry[T]
	switch q.state {
	case stateIdle:
		q.state = stateStopped
		close(q.done)
	case stateRunning, stateDraining:
		if wait {
			q.state = stateDraining
		} else {
			q.state = stateStopped
			pending = q.items
			q.items = nil
		}
	case stateStopped:
	}
	q.mu.Unlock()

	q.stopOnce.Do(func() { close(q.stopCh) })
	if !wait {
		q.cancel()
	}
	if len(pending) > 0 {
		for _, e := range pending {
			e.c.complete(ErrDiscarded)
		}
		q.discarded.Add(uint64(len(pending)))
		q.obs.ObserveDiscard(len(pending))
		q.log.Warn("discarded pending items", logpkg.Int("count", len(pending)))
	}
}

// Wait blocks until the worker has exited or ctx is done.
func (q *Queue[T]) Wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of queued, not yet persisted items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	pending, running := len(q.items), q.state == stateRunning
	q.mu.Unlock()
	return Stats{
		Pending:   pending,
		Enqueued:  q.enqueued.Load(),
		Persisted: q.persisted.Load(),
		Failed:    q.failed.Load(),
		Discarded: q.discarded.Load(),
		Running:   running,
	}
}

func (q *Queue[T]) next() (entry[T], bool) {
	q.mu.Lock()
	for len(q.items) == 0 {
		if q.state != stateRunning {
			q.mu.Unlock()
			return entry[T]{}, false
		}
		q.mu.Unlock()
		select {
		case <-q.signal:
		case <-q.stopCh:
		}
		q.mu.Lock()
	}
	if q.state == stateStopped {
		q.mu.Unlock()
		return entry[T]{}, false
	}
	e := q.items[0]
	q.items[0] = entry[T]{}
	q.items = q.items[1:]
	q.mu.Unlock()
	return e, true
}

func (q *Queue[T]) run() {
	defer close(q.done)
	for {
		e, ok := q.next()
		if !ok {
			q.log.Debug("queue worker exiting")
			return
		}
		start := time.Now()
		err := q.persist(q.ctx, e.value)
		q.obs.ObservePersist(time.Since(start), err)
		if err != nil {
			q.failed.Add(1)
			q.log.Error("persist failed", logpkg.Err(err))
			e.c.complete(&PersistError{Err: err})
			continue
		}
		q.persisted.Add(1)
		e.c.complete(nil)
	}
}
