package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. It satisfies the storage
// MetricsHook, wal.Observer and runtime.Observer interfaces.
type Metrics struct {
	registry *prometheus.Registry

	StorageOps      *prometheus.CounterVec
	StorageBytes    *prometheus.CounterVec
	StorageDuration *prometheus.HistogramVec

	WALDepth           prometheus.Gauge
	WALEnqueued        prometheus.Counter
	WALPersisted       *prometheus.CounterVec
	WALPersistDuration prometheus.Histogram
	WALDiscarded       prometheus.Counter

	Channels     prometheus.Gauge
	TrackedTasks prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		StorageOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiu_storage_operations_total",
			Help: "Storage operations by kind (write, read, batch).",
		}, []string{"op"}),
		StorageBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiu_storage_bytes_total",
			Help: "Bytes written to or read from channel stores.",
		}, []string{"op"}),
		StorageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiu_storage_operation_duration_seconds",
			Help:    "Storage operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"op"}),

		WALDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "quiu_wal_depth",
			Help: "Items queued in the write-ahead queue at last enqueue.",
		}),
		WALEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "quiu_wal_enqueued_total",
			Help: "Items accepted by the write-ahead queue.",
		}),
		WALPersisted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiu_wal_persisted_total",
			Help: "Persist attempts by result (ok, error).",
		}, []string{"result"}),
		WALPersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiu_wal_persist_duration_seconds",
			Help:    "Time spent persisting one write-ahead item.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		}),
		WALDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "quiu_wal_discarded_total",
			Help: "Items dropped by a non-draining stop.",
		}),

		Channels: f.NewGauge(prometheus.GaugeOpts{
			Name: "quiu_channels",
			Help: "Live channels in the registry.",
		}),
		TrackedTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "quiu_tracked_tasks",
			Help: "Background tasks tracked by the registry.",
		}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiu_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiu_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeStorage(op string, elapsed time.Duration, bytes int) {
	m.StorageOps.WithLabelValues(op).Inc()
	m.StorageBytes.WithLabelValues(op).Add(float64(bytes))
	m.StorageDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.observeStorage("write", elapsed, bytes)
}

func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.observeStorage("read", elapsed, bytes)
}

func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	m.observeStorage("batch", elapsed, bytes)
}

func (m *Metrics) ObserveEnqueue(depth int) {
	m.WALEnqueued.Inc()
	m.WALDepth.Set(float64(depth))
}

func (m *Metrics) ObservePersist(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WALPersisted.WithLabelValues(result).Inc()
	m.WALPersistDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDiscard(n int) { m.WALDiscarded.Add(float64(n)) }

func (m *Metrics) SetChannels(n int)     { m.Channels.Set(float64(n)) }
func (m *Metrics) SetTrackedTasks(n int) { m.TrackedTasks.Set(float64(n)) }

// ObserveRequest records one HTTP request against its route template.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
