package serverrun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/luismedel/quiu/internal/channel"
	cfgpkg "github.com/luismedel/quiu/internal/config"
	"github.com/luismedel/quiu/internal/logstore"
	"github.com/luismedel/quiu/internal/metrics"
	"github.com/luismedel/quiu/internal/runtime"
	httpserver "github.com/luismedel/quiu/internal/server/http"
	pebblestore "github.com/luismedel/quiu/internal/storage/pebble"
	"github.com/luismedel/quiu/internal/wal"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
	// Ready, when set, is called with the bound HTTP address and the live
	// registry once the HTTP server task is running.
	Ready func(addr net.Addr, rt *runtime.Runtime)
}

// Run opens the registry, starts the shared write-ahead queue and serves HTTP
// until ctx is cancelled or SIGINT/SIGTERM arrives. Shutdown stops HTTP
// first, drains the queue for up to the runtime shutdown wait, then disposes
// every channel.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Store.Fsync)
	if err != nil {
		return err
	}

	procLogger := opts.Logger
	if procLogger == nil {
		procLogger, err = logpkg.ApplyConfig(&cfg.Log)
		if err != nil {
			lvl := logpkg.InfoLevel
			if l, e := logpkg.ParseLevel(cfg.Log.Level); e == nil {
				lvl = l
			}
			procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
			procLogger.Warn("invalid log config, using defaults", logpkg.Err(err))
		}
		// Pebble logs through the stdlib logger.
		logpkg.RedirectStdLog(procLogger)
	}

	procLogger.Info("starting quiu server",
		logpkg.Str("http", cfg.Server.Addr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("backend", cfg.Store.Backend),
		logpkg.Str("fsync", cfg.Store.Fsync),
		logpkg.Bool("wal", cfg.WAL.Enabled),
	)

	m := metrics.New()
	rt, err := runtime.Open(runtime.Options{
		DataDir: cfg.DataDir,
		Store: logstore.Options{
			Backend:       logstore.Backend(cfg.Store.Backend),
			Fsync:         fsync,
			FsyncInterval: cfg.Store.FsyncInterval(),
			Metrics:       m,
		},
		RecoverChannels: cfg.Runtime.RecoverChannels,
		TasksThreshold:  cfg.Runtime.TasksThreshold,
		ShutdownWait:    cfg.Runtime.ShutdownWait(),
		Logger:          procLogger,
		Observer:        m,
	})
	if err != nil {
		return err
	}
	if err := rt.EnsureBuiltins(sctx, cfg.Runtime.Builtins); err != nil {
		rt.Shutdown()
		return err
	}

	var q *wal.Queue[channel.Entry]
	if cfg.WAL.Enabled {
		q = wal.New(channel.Persist, wal.Options{Context: rt.Context(), Logger: procLogger, Observer: m})
		if err := q.Start(); err != nil {
			rt.Shutdown()
			return err
		}
	}

	hsrv := httpserver.New(httpserver.Options{
		Runtime:       rt,
		WAL:           q,
		CommitTimeout: cfg.WAL.CommitTimeout(),
		Metrics:       m,
		Logger:        procLogger,
	})

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		stopQueue(q, false)
		rt.Shutdown()
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	// The HTTP loop is a tracked registry task: it ends on a signal, on ctx
	// cancellation or when the registry context is cancelled.
	httpTask := rt.EnqueueTask("http server", func(rctx context.Context) error {
		serveCtx, cancel := context.WithCancel(sctx)
		defer cancel()
		stopOnRuntime := context.AfterFunc(rctx, cancel)
		defer stopOnRuntime()
		return hsrv.Serve(serveCtx, lis)
	})
	if opts.Ready != nil {
		opts.Ready(lis.Addr(), rt)
	}
	<-httpTask.Done()
	serveErr := httpTask.Err()

	procLogger.Info("shutting down")
	if q != nil {
		q.Stop(true)
		wctx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.ShutdownWait())
		if err := q.Wait(wctx); err != nil {
			procLogger.Warn("write-ahead queue did not drain", logpkg.Int("pending", q.Len()), logpkg.Err(err))
		}
		cancel()
	}
	rt.Shutdown()
	stopQueue(q, false)

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	procLogger.Info("stopped")
	return nil
}

func stopQueue(q *wal.Queue[channel.Entry], wait bool) {
	if q != nil {
		q.Stop(wait)
	}
}
