package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/luismedel/quiu/internal/logstore"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

// Options configures a channel. Store.Dir is overridden by StoragePath.
type Options struct {
	ID          uuid.UUID
	Name        string
	StoragePath string
	Store       logstore.Options
	Logger      logpkg.Logger
}

// Channel binds a GUID to exactly one log store.
type Channel struct {
	id    uuid.UUID
	path  string
	store logstore.Store
	log   logpkg.Logger

	mu   sync.RWMutex
	name string

	disposeOnce sync.Once
}

// Open creates or re-attaches the channel's store at opts.StoragePath.
func Open(opts Options) (*Channel, error) {
	if opts.ID == uuid.Nil {
		return nil, errors.New("channel: id is required")
	}
	if opts.StoragePath == "" {
		return nil, errors.New("channel: storage path is required")
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	so := opts.Store
	so.Dir = opts.StoragePath
	store, err := logstore.Open(so)
	if err != nil {
		return nil, err
	}
	return newChannel(opts, store), nil
}

// New wraps an already open store.
func New(id uuid.UUID, name string, store logstore.Store, logger logpkg.Logger) *Channel {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return newChannel(Options{ID: id, Name: name, StoragePath: store.Path(), Logger: logger}, store)
}

func newChannel(opts Options, store logstore.Store) *Channel {
	return &Channel{
		id:    opts.ID,
		name:  opts.Name,
		path:  opts.StoragePath,
		store: store,
		log:   opts.Logger.With(logpkg.Component("channel"), logpkg.Str("channel", opts.ID.String())),
	}
}

func (c *Channel) ID() uuid.UUID { return c.id }

func (c *Channel) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Channel) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Channel) StoragePath() string { return c.path }

// LastOffset is the highest offset issued by the store.
func (c *Channel) LastOffset() int64 { return c.store.LastOffset() }

// Append writes payload synchronously and returns its offset.
func (c *Channel) Append(ctx context.Context, payload []byte) (int64, error) {
	return c.store.Append(ctx, payload)
}

func (c *Channel) Fetch(ctx context.Context, offset int64) (logstore.Record, error) {
	return c.store.Fetch(ctx, offset)
}

// FetchRange returns up to count contiguous records starting at offset.
func (c *Channel) FetchRange(ctx context.Context, offset int64, count int) ([]logstore.Record, error) {
	return c.store.FetchRange(ctx, offset, count)
}

// PruneData erases the channel's on-disk data. Failures are logged and
// reported as false.
func (c *Channel) PruneData() bool {
	if err := c.store.Destroy(); err != nil {
		c.log.Error("prune failed", logpkg.Str("path", c.path), logpkg.Err(err))
		return false
	}
	c.log.Info("data pruned", logpkg.Str("path", c.path))
	return true
}

// Dispose releases the store handle. Safe to call more than once.
func (c *Channel) Dispose() {
	c.disposeOnce.Do(func() {
		if err := c.store.Close(); err != nil {
			c.log.Warn("close failed", logpkg.Err(err))
		}
	})
}
