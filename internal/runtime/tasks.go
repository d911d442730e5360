package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	logpkg "github.com/luismedel/quiu/pkg/log"
)

// Task is a tracked background unit of work.
type Task struct {
	Label   string
	Started time.Time

	once sync.Once
	done chan struct{}
	err  error
}

func newTask(label string) *Task {
	return &Task{Label: label, Started: time.Now(), done: make(chan struct{})}
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done is closed when the task returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Finished reports whether the task has returned.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err is the task's result once Done is closed.
func (t *Task) Err() error {
	if !t.Finished() {
		return nil
	}
	return t.err
}

// EnqueueTask runs fn on its own goroutine with the runtime context and
// tracks it for Shutdown. Once shutdown has begun fn is not run and the
// returned task is already finished with ErrShuttingDown.
func (r *Runtime) EnqueueTask(label string, fn func(ctx context.Context) error) *Task {
	t := newTask(label)
	if s := r.State(); s == StateShuttingDown || s == StateStopped {
		t.finish(ErrShuttingDown)
		return t
	}

	r.track(t)
	go func() {
		err := fn(r.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("task failed", logpkg.Str("task", label), logpkg.Err(err))
		}
		t.finish(err)
	}()
	return t
}

func (r *Runtime) track(t *Task) {
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()
	r.log.Debug("task enqueued", logpkg.Str("task", t.Label))
	r.tasks = append(r.tasks, t)

	if len(r.tasks) >= r.threshold {
		kept := r.tasks[:0]
		for _, tt := range r.tasks {
			if !tt.Finished() {
				kept = append(kept, tt)
			}
		}
		removed := len(r.tasks) - len(kept)
		for i := len(kept); i < len(r.tasks); i++ {
			r.tasks[i] = nil
		}
		r.tasks = kept
		if removed > 0 {
			r.log.Info("pruned completed tasks", logpkg.Int("removed", removed))
		} else {
			r.log.Warn("tracked tasks above threshold", logpkg.Int("running", len(r.tasks)), logpkg.Int("threshold", r.threshold))
		}
	}
	r.obs.SetTrackedTasks(len(r.tasks))
}

// TrackedTasks is the number of tasks currently tracked, finished or not.
func (r *Runtime) TrackedTasks() int {
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()
	return len(r.tasks)
}

// RunningTasks returns the tracked tasks that have not finished.
func (r *Runtime) RunningTasks() []*Task {
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()
	var out []*Task
	for _, t := range r.tasks {
		if !t.Finished() {
			out = append(out, t)
		}
	}
	return out
}

func (r *Runtime) waitTasks() {
	running := r.RunningTasks()
	if len(running) == 0 {
		return
	}
	r.log.Info("waiting for tasks", logpkg.Int("count", len(running)), logpkg.Duration("timeout", r.wait))
	timer := time.NewTimer(r.wait)
	defer timer.Stop()
	for _, t := range running {
		select {
		case <-t.Done():
		case <-timer.C:
			r.log.Warn("task wait timed out", logpkg.Int("pending", len(r.RunningTasks())))
			return
		}
	}
}
