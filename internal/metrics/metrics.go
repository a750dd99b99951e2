// Package metrics exposes the server's Prometheus instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics tracks Prometheus metrics for the RPC dispatch path.
//
// All metrics use the "quillnfs_" prefix. Methods handle a nil receiver
// gracefully, so a nil *ServerMetrics acts as a no-op when metrics are
// disabled.
type ServerMetrics struct {
	// RequestsTotal counts dispatched RPC calls.
	// Labels: program=[nfs, mount, portmap, other], procedure, status.
	RequestsTotal *prometheus.CounterVec

	// RetransmissionsDropped counts calls suppressed by the transaction
	// tracker.
	RetransmissionsDropped prometheus.Counter

	// ConnectionsOpen tracks currently open client connections.
	ConnectionsOpen prometheus.Gauge

	// ConnectionsTotal counts accepted client connections.
	ConnectionsTotal prometheus.Counter

	// RequestDuration tracks dispatch latency by procedure.
	RequestDuration *prometheus.HistogramVec

	// BytesRead counts payload bytes served by READ.
	BytesRead prometheus.Counter

	// BytesWritten counts payload bytes accepted by WRITE.
	BytesWritten prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *ServerMetrics
)

// NewServerMetrics creates and registers the server metrics exactly once.
// If registerer is nil, prometheus.DefaultRegisterer is used. Subsequent
// calls return the singleton regardless of the registerer argument.
func NewServerMetrics(registerer prometheus.Registerer) *ServerMetrics {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &ServerMetrics{
			RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quillnfs_requests_total",
				Help: "Dispatched RPC calls by program, procedure and status.",
			}, []string{"program", "procedure", "status"}),

			RetransmissionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "quillnfs_retransmissions_dropped_total",
				Help: "Calls suppressed as retransmissions of a recently processed xid.",
			}),

			ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "quillnfs_connections_open",
				Help: "Currently open client connections.",
			}),

			ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "quillnfs_connections_total",
				Help: "Accepted client connections.",
			}),

			RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "quillnfs_request_duration_seconds",
				Help:    "Dispatch latency by procedure.",
				Buckets: prometheus.DefBuckets,
			}, []string{"procedure"}),

			BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "quillnfs_read_bytes_total",
				Help: "Payload bytes served by READ.",
			}),

			BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "quillnfs_written_bytes_total",
				Help: "Payload bytes accepted by WRITE.",
			}),
		}

		registerer.MustRegister(
			m.RequestsTotal,
			m.RetransmissionsDropped,
			m.ConnectionsOpen,
			m.ConnectionsTotal,
			m.RequestDuration,
			m.BytesRead,
			m.BytesWritten,
		)

		metricsInstance = m
	})

	return metricsInstance
}

// ObserveRequest records one dispatched call.
func (m *ServerMetrics) ObserveRequest(program, procedure string, status uint32, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(program, procedure, statusLabel(status)).Inc()
	m.RequestDuration.WithLabelValues(procedure).Observe(seconds)
}

// ObserveRetransmission records one suppressed retransmission.
func (m *ServerMetrics) ObserveRetransmission() {
	if m == nil {
		return
	}
	m.RetransmissionsDropped.Inc()
}

// ConnectionOpened records an accepted connection.
func (m *ServerMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsOpen.Inc()
}

// ConnectionClosed records a finished connection.
func (m *ServerMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsOpen.Dec()
}

// AddBytesRead accumulates READ payload bytes.
func (m *ServerMetrics) AddBytesRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))
}

// AddBytesWritten accumulates WRITE payload bytes.
func (m *ServerMetrics) AddBytesWritten(n int) {
	if m == nil {
		return
	}
	m.BytesWritten.Add(float64(n))
}

func statusLabel(status uint32) string {
	if status == 0 {
		return "ok"
	}
	return "error"
}
