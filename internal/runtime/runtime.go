package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/luismedel/quiu/internal/channel"
	"github.com/luismedel/quiu/internal/logstore"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

const (
	// DefaultTasksThreshold is the tracked-task count that triggers pruning.
	DefaultTasksThreshold = 1024
	// DefaultShutdownWait bounds the task drain in Shutdown.
	DefaultShutdownWait = 2 * time.Second

	indexFile   = "channels.index"
	channelsDir = "channels"
)

var (
	// ErrShuttingDown is returned by mutating calls once Shutdown has begun.
	ErrShuttingDown = errors.New("runtime: shutting down")
	// ErrInvalidName rejects channel names that cannot be stored on one
	// index line.
	ErrInvalidName = errors.New("runtime: channel name must not contain line breaks")
)

// ValidName reports whether name can be written to the index as is.
func ValidName(name string) bool {
	return !strings.ContainsAny(name, "\r\n")
}

// State is the registry lifecycle state.
type State int32

const (
	StateConstructing State = iota
	StateReady
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructing:
		return "constructing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Observer receives registry gauges. Optional.
type Observer interface {
	SetChannels(n int)
	SetTrackedTasks(n int)
}

type noopObserver struct{}

func (noopObserver) SetChannels(int)     {}
func (noopObserver) SetTrackedTasks(int) {}

// Options for building the Runtime.
type Options struct {
	DataDir string
	// Store carries backend, fsync and metrics for every channel store.
	Store           logstore.Options
	RecoverChannels bool
	TasksThreshold  int
	ShutdownWait    time.Duration
	Logger          logpkg.Logger
	Observer        Observer
}

// Runtime is the channel registry: live channels, the recovery index,
// background task tracking and shutdown sequencing.
type Runtime struct {
	dataDir   string
	storeOpts logstore.Options
	threshold int
	wait      time.Duration
	log       logpkg.Logger
	obs       Observer

	state atomic.Int32

	// mu guards channels and the index file together.
	mu       sync.Mutex
	channels map[uuid.UUID]*channel.Channel

	tasksMu sync.Mutex
	tasks   []*Task

	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
}

// Open prepares the data directory and, when enabled, recovers channels from
// the index.
func Open(opts Options) (*Runtime, error) {
	if opts.DataDir == "" {
		return nil, errors.New("runtime: Options.DataDir is required")
	}
	if opts.TasksThreshold <= 0 {
		opts.TasksThreshold = DefaultTasksThreshold
	}
	if opts.ShutdownWait <= 0 {
		opts.ShutdownWait = DefaultShutdownWait
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if err := os.MkdirAll(filepath.Join(opts.DataDir, channelsDir), 0o755); err != nil {
		return nil, fmt.Errorf("runtime: create data dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		dataDir:   opts.DataDir,
		storeOpts: opts.Store,
		threshold: opts.TasksThreshold,
		wait:      opts.ShutdownWait,
		log:       opts.Logger.WithComponent("runtime"),
		obs:       opts.Observer,
		channels:  make(map[uuid.UUID]*channel.Channel),
		ctx:       ctx,
		cancel:    cancel,
	}
	r.state.Store(int32(StateConstructing))

	if opts.RecoverChannels {
		if _, err := r.RecoverChannels(); err != nil {
			cancel()
			r.disposeAll()
			return nil, err
		}
	}
	r.state.Store(int32(StateReady))
	r.log.Info("runtime ready", logpkg.Str("data_dir", r.dataDir), logpkg.Int("channels", r.channelCount()))
	return r, nil
}

// DataDir is the registry root.
func (r *Runtime) DataDir() string { return r.dataDir }

// IndexPath is the recovery index file.
func (r *Runtime) IndexPath() string { return filepath.Join(r.dataDir, indexFile) }

// ChannelPath is the storage directory for a channel GUID.
func (r *Runtime) ChannelPath(id uuid.UUID) string {
	return filepath.Join(r.dataDir, channelsDir, id.String())
}

// State reports the lifecycle state.
func (r *Runtime) State() State { return State(r.state.Load()) }

// Context is cancelled at the end of Shutdown.
func (r *Runtime) Context() context.Context { return r.ctx }

func (r *Runtime) accepting() bool {
	s := r.State()
	return s == StateReady || s == StateConstructing
}

func (r *Runtime) openChannel(id uuid.UUID, name string) (*channel.Channel, error) {
	return channel.Open(channel.Options{
		ID:          id,
		Name:        name,
		StoragePath: r.ChannelPath(id),
		Store:       r.storeOpts,
		Logger:      r.log,
	})
}

// AddChannel creates the channel or returns the existing one for id. A nil
// id generates a new GUID. The index is rewritten before returning.
func (r *Runtime) AddChannel(ctx context.Context, id uuid.UUID, name string) (*channel.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepting() {
		return nil, ErrShuttingDown
	}
	if existing, ok := r.channels[id]; ok {
		r.log.Warn("channel already exists", logpkg.Str("channel", id.String()))
		return existing, nil
	}

	ch, err := r.openChannel(id, name)
	if err != nil {
		return nil, fmt.Errorf("runtime: open channel %s: %w", id, err)
	}
	r.channels[id] = ch
	if err := r.writeIndexLocked(); err != nil {
		delete(r.channels, id)
		ch.Dispose()
		return nil, err
	}
	r.obs.SetChannels(len(r.channels))
	r.log.Info("channel created", logpkg.Str("channel", id.String()), logpkg.Str("name", name))
	return ch, nil
}

// GetChannel looks up a live channel.
func (r *Runtime) GetChannel(id uuid.UUID) (*channel.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Channels returns a snapshot of the live channels.
func (r *Runtime) Channels() []*channel.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*channel.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

func (r *Runtime) channelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// DropChannel detaches ch from the registry, releases its store and, with
// prune, erases its data. It returns false when ch was not registered or
// pruning failed; the channel is gone from the registry either way.
func (r *Runtime) DropChannel(ch *channel.Channel, prune bool) bool {
	if ch == nil {
		return false
	}
	r.mu.Lock()
	cur, ok := r.channels[ch.ID()]
	if !ok || cur != ch {
		r.mu.Unlock()
		return false
	}
	delete(r.channels, ch.ID())
	if err := r.writeIndexLocked(); err != nil {
		r.log.Error("index rewrite failed after drop", logpkg.Str("channel", ch.ID().String()), logpkg.Err(err))
	}
	r.obs.SetChannels(len(r.channels))
	r.mu.Unlock()

	ch.Dispose()
	r.log.Info("channel dropped", logpkg.Str("channel", ch.ID().String()), logpkg.Bool("prune", prune))
	if prune {
		return ch.PruneData()
	}
	return true
}

// EnsureBuiltins adds the given channel GUIDs if they are not registered.
func (r *Runtime) EnsureBuiltins(ctx context.Context, ids []string) error {
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("runtime: builtin %q: %w", s, err)
		}
		if _, err := r.AddChannel(ctx, id, ""); err != nil {
			return err
		}
	}
	return nil
}

// CheckHealth reports whether the registry is serving and its data dir is
// reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s := r.State(); s != StateReady {
		return fmt.Errorf("runtime: state %s", s)
	}
	info, err := os.Stat(r.dataDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("runtime: %s is not a directory", r.dataDir)
	}
	return nil
}

// Shutdown disposes every channel, waits up to the configured bound for
// tracked tasks and cancels Context. Concurrent callers block until the
// first finishes; later calls return immediately.
func (r *Runtime) Shutdown() {
	r.shutdownOnce.Do(r.shutdown)
}

// Close is Shutdown for use with defer.
func (r *Runtime) Close() error {
	r.Shutdown()
	return nil
}

func (r *Runtime) shutdown() {
	r.state.Store(int32(StateShuttingDown))
	r.log.Info("shutting down")

	n := r.disposeAll()
	if n > 0 {
		r.log.Info("released channels", logpkg.Int("count", n))
	}

	r.waitTasks()
	r.cancel()
	r.state.Store(int32(StateStopped))
	r.log.Info("stopped")
}

func (r *Runtime) disposeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.channels)
	for id, ch := range r.channels {
		ch.Dispose()
		delete(r.channels, id)
	}
	r.obs.SetChannels(0)
	return n
}
