package wal

import (
	"context"
	"sync"
)

// Completion is a single-shot future fulfilled by the queue worker.
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// complete is a no-op on a nil receiver so fire-and-forget items need no checks.
func (c *Completion) complete(err error) {
	if c == nil {
		return
	}
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed once the outcome is known.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the outcome after Done is closed, nil before.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the item is settled or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
