package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the agent.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	UploadsSent   prometheus.Counter
	UploadsFailed prometheus.Counter
	UploadLatency prometheus.Histogram
	QueueDepth    prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UploadsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recording_uploads_sent_total",
			Help: "Total number of queued recordings successfully uploaded.",
		}),

		UploadsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recording_uploads_failed_total",
			Help: "Total number of failed upload attempts (counted per attempt).",
		}),

		UploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recording_upload_seconds",
			Help:    "Upload latency from attempt start to backend ack.",
			Buckets: prometheus.DefBuckets,
		}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "offline_queue_depth",
			Help: "Current number of recordings waiting in the offline queue.",
		}),
	}

	reg.MustRegister(
		m.UploadsSent,
		m.UploadsFailed,
		m.UploadLatency,
		m.QueueDepth,
	)

	return m
}

// Hooks returns the metric callback functions expected by queue.Hooks.
// Centralises the prometheus observation calls so the queue service stays
// metrics-agnostic.
func (m *Metrics) Hooks() (
	onSent func(latency time.Duration),
	onFailed func(),
	onDepth func(n int),
) {
	onSent = func(latency time.Duration) {
		m.UploadsSent.Inc()
		m.UploadLatency.Observe(latency.Seconds())
	}
	onFailed = func() {
		m.UploadsFailed.Inc()
	}
	onDepth = func(n int) {
		m.QueueDepth.Set(float64(n))
	}
	return
}
