// Package metrics defines quiu's Prometheus collectors on a private registry.
// One *Metrics is handed to the storage layer, the write-ahead queue, the
// registry and the HTTP server.
package metrics
