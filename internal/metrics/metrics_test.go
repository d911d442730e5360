package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luismedel/quiu/internal/logstore"
	"github.com/luismedel/quiu/internal/runtime"
	"github.com/luismedel/quiu/internal/wal"
)

var (
	_ logstore.MetricsHook = (*Metrics)(nil)
	_ wal.Observer         = (*Metrics)(nil)
	_ runtime.Observer     = (*Metrics)(nil)
)

func TestObservers(t *testing.T) {
	m := New()
	m.ObserveWrite(time.Millisecond, 10)
	m.ObserveWrite(time.Millisecond, 5)
	m.ObserveRead(time.Millisecond, 7)
	require.Equal(t, 2.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("write")))
	require.Equal(t, 15.0, testutil.ToFloat64(m.StorageBytes.WithLabelValues("write")))

	m.ObserveEnqueue(3)
	m.ObservePersist(time.Millisecond, nil)
	m.ObservePersist(time.Millisecond, errors.New("x"))
	m.ObserveDiscard(4)
	require.Equal(t, 3.0, testutil.ToFloat64(m.WALDepth))
	require.Equal(t, 1.0, testutil.ToFloat64(m.WALPersisted.WithLabelValues("error")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.WALDiscarded))

	m.SetChannels(2)
	require.Equal(t, 2.0, testutil.ToFloat64(m.Channels))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/channel/{guid}/{offset}", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.True(t, strings.Contains(string(body), "quiu_http_requests_total"))
	require.True(t, strings.Contains(string(body), "go_goroutines"))
}
