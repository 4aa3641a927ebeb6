// Package metrics holds the Prometheus collectors for npitrack.
//
// Metrics:
//   - npitrack_handover_steps_total{step,result} - handover pipeline steps by outcome
//   - npitrack_handover_duration_seconds - wall time of a whole handover run
//   - npitrack_archive_bytes - size of the last written archive
//   - npitrack_document_copies_total{result} - files copied by document imports
//   - npitrack_http_requests_total{method,route,status} - HTTP requests served
//   - npitrack_http_request_duration_seconds{route} - HTTP latency
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors. Its recording methods accept a nil receiver.
type Metrics struct {
	HandoverSteps    *prometheus.CounterVec
	HandoverDuration prometheus.Histogram
	ArchiveBytes     prometheus.Gauge
	DocumentCopies   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New registers every collector with reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HandoverSteps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "npitrack_handover_steps_total",
			Help: "Handover pipeline steps by step and result",
		}, []string{"step", "result"}),
		HandoverDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "npitrack_handover_duration_seconds",
			Help:    "Duration of a full handover assembly in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ArchiveBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "npitrack_archive_bytes",
			Help: "Size of the most recently written handover archive",
		}),
		DocumentCopies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "npitrack_document_copies_total",
			Help: "Files copied into project directories by result",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "npitrack_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "npitrack_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Step records one handover step outcome. A nil receiver is a no-op.
func (m *Metrics) Step(step string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.HandoverSteps.WithLabelValues(step, result).Inc()
}

// Copy records one document copy outcome. A nil receiver is a no-op.
func (m *Metrics) Copy(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DocumentCopies.WithLabelValues(result).Inc()
}
