package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/luismedel/quiu/internal/channel"
	"github.com/luismedel/quiu/internal/metrics"
	"github.com/luismedel/quiu/internal/runtime"
	"github.com/luismedel/quiu/internal/server/http/controllers"
	"github.com/luismedel/quiu/internal/wal"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

// DefaultShutdownTimeout bounds graceful shutdown of in-flight requests.
const DefaultShutdownTimeout = 5 * time.Second

// Options configures the HTTP server.
type Options struct {
	Runtime *runtime.Runtime
	// WAL is the shared write-ahead queue. When nil, appends go straight to
	// the channel store.
	WAL           *wal.Queue[channel.Entry]
	CommitTimeout time.Duration
	// Metrics is optional; when set /metrics is served and requests are counted.
	Metrics *metrics.Metrics
	Logger  logpkg.Logger
}

type Server struct {
	rt      *runtime.Runtime
	router  *mux.Router
	srv     *http.Server
	metrics *metrics.Metrics
	log     logpkg.Logger

	mu  sync.Mutex
	lis net.Listener
}

// New builds the router and wires every controller.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	s := &Server{
		rt:      opts.Runtime,
		router:  mux.NewRouter(),
		metrics: opts.Metrics,
		log:     logger.WithComponent("http"),
	}
	s.router.NotFoundHandler = http.HandlerFunc(controllers.NotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(controllers.MethodNotAllowed)
	s.router.Use(s.observe)

	controllers.NewGeneralController(opts.Runtime).RegisterRoutes(s.router)
	controllers.NewAdminController(opts.Runtime, logger).RegisterRoutes(s.router)
	controllers.NewChannelsController(opts.Runtime, opts.WAL, opts.CommitTimeout, logger).RegisterRoutes(s.router)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.srv = &http.Server{
		Handler:           cors(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logpkg.ToStdLogger(s.log, logpkg.WarnLevel),
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Addr returns the bound address once ListenAndServe is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to DefaultShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve is ListenAndServe on an existing listener, which it takes ownership of.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()
	s.log.Info("http listening", logpkg.Str("addr", l.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(cctx); err != nil {
			s.log.Warn("http shutdown", logpkg.Err(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) Close() {
	_ = s.srv.Close()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe records per-route request metrics and debug logs.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
		}
		s.log.Debug("request",
			logpkg.Str("method", r.Method),
			logpkg.Str("route", route),
			logpkg.Int("status", rec.status),
			logpkg.Duration("elapsed", elapsed))
	})
}

// cors runs outside the router so preflight requests never hit the
// method matcher.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+controllers.NoWaitHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
