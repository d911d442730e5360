package serverrun

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/luismedel/quiu/internal/config"
	"github.com/luismedel/quiu/internal/logstore"
	"github.com/luismedel/quiu/internal/runtime"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Runtime.ShutdownWaitMs = 500
	return cfg
}

// startServer runs Run in the background and returns its base URL and a stop
// func that returns Run's result.
func startServer(t *testing.T, cfg cfgpkg.Config) (string, func() error) {
	t.Helper()
	base, _, stop := startServerRuntime(t, cfg)
	return base, stop
}

func startServerRuntime(t *testing.T, cfg cfgpkg.Config) (string, *runtime.Runtime, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var rt *runtime.Runtime
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Options{
			Config: cfg,
			Logger: logpkg.NewNopLogger(),
			Ready: func(a net.Addr, r *runtime.Runtime) {
				rt = r
				addrCh <- a
			},
		})
	}()

	select {
	case a := <-addrCh:
		return "http://" + a.String(), rt, func() error {
			cancel()
			select {
			case err := <-errCh:
				return err
			case <-time.After(15 * time.Second):
				t.Fatal("Run did not return")
				return nil
			}
		}
	case err := <-errCh:
		cancel()
		t.Fatalf("Run failed early: %v", err)
	case <-time.After(15 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	return "", nil, nil
}

func createChannel(t *testing.T, base, guid string) {
	t.Helper()
	resp, err := http.PostForm(base+"/admin/channel/new", url.Values{"guid": {guid}, "name": {"test"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func appendLines(t *testing.T, base, guid string, lines ...string) {
	t.Helper()
	resp, err := http.Post(base+"/channel/"+guid, "text/plain", strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out struct {
		Processed int `json:"processed"`
		Commited  int `json:"commited"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, len(lines), out.Commited)
}

func reopen(t *testing.T, cfg cfgpkg.Config) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir:         cfg.DataDir,
		Store:           logstore.Options{Backend: logstore.Backend(cfg.Store.Backend)},
		RecoverChannels: true,
	})
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt
}

func TestRunServesAndPersists(t *testing.T) {
	for _, backend := range []string{"pebble", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Store.Backend = backend
			base, stop := startServer(t, cfg)

			guid := uuid.NewString()
			createChannel(t, base, guid)
			appendLines(t, base, guid, "a", "b", "c")

			resp, err := http.Get(base + "/healthz")
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			require.NoError(t, stop())

			rt := reopen(t, cfg)
			ch, ok := rt.GetChannel(uuid.MustParse(guid))
			require.True(t, ok)
			require.Equal(t, int64(3), ch.LastOffset())
			rec, err := ch.Fetch(context.Background(), 3)
			require.NoError(t, err)
			require.Equal(t, "c", string(rec.Payload))
		})
	}
}

func TestRunWithoutWAL(t *testing.T) {
	cfg := testConfig(t)
	cfg.WAL.Enabled = false
	base, stop := startServer(t, cfg)

	guid := uuid.NewString()
	createChannel(t, base, guid)
	appendLines(t, base, guid, "x", "y")
	require.NoError(t, stop())

	rt := reopen(t, cfg)
	ch, ok := rt.GetChannel(uuid.MustParse(guid))
	require.True(t, ok)
	require.Equal(t, int64(2), ch.LastOffset())
}

func TestRunEnsuresBuiltins(t *testing.T) {
	cfg := testConfig(t)
	builtin := uuid.NewString()
	cfg.Runtime.Builtins = []string{builtin}
	base, stop := startServer(t, cfg)

	appendLines(t, base, builtin, "hello")
	require.NoError(t, stop())

	rt := reopen(t, cfg)
	_, ok := rt.GetChannel(uuid.MustParse(builtin))
	require.True(t, ok)
}

func TestRunTracksHTTPServerTask(t *testing.T) {
	cfg := testConfig(t)
	base, rt, stop := startServerRuntime(t, cfg)
	require.NotNil(t, rt)

	var labels []string
	for _, task := range rt.RunningTasks() {
		labels = append(labels, task.Label)
	}
	require.Contains(t, labels, "http server")

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, stop())
	require.Equal(t, runtime.StateStopped, rt.State())
	require.Empty(t, rt.RunningTasks())
}

func TestRunStopsWhenRuntimeShutsDown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runtime.ShutdownWaitMs = 50
	_, rt, stop := startServerRuntime(t, cfg)

	rt.Shutdown()
	require.NoError(t, stop())
	require.Empty(t, rt.RunningTasks())
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "bolt"
	err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNopLogger()})
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Runtime.Builtins = []string{"not-a-guid"}
	err = Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNopLogger()})
	require.Error(t, err)
}

func TestRunListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testConfig(t)
	cfg.Server.Addr = l.Addr().String()
	err = Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNopLogger()})
	require.Error(t, err)
}
