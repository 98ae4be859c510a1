// Package metrics exposes Prometheus counters for cross-reference runs and notifications.
package metrics

import (
	"net/http"
	"time"

	"github.com/kozaktomas/lookout/internal/facematch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification results.
const (
	ResultCreated   = "created"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// Channel send results.
const (
	SendOK     = "ok"
	SendFailed = "failed"
)

// Metrics holds the service collectors. It implements facematch.SkipRecorder.
type Metrics struct {
	registry      *prometheus.Registry
	skipped       *prometheus.CounterVec
	matches       prometheus.Counter
	notifications *prometheus.CounterVec
	channelSends  *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_candidates_skipped_total",
			Help: "Candidates skipped during cross-reference runs, by reason",
		}, []string{"reason"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lookout_matches_total",
			Help: "Candidates whose similarity cleared the match threshold",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_notifications_total",
			Help: "Face match notifications by outcome",
		}, []string{"result"}),
		channelSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookout_channel_sends_total",
			Help: "External message channel deliveries by outcome",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lookout_crossref_duration_seconds",
			Help:    "Duration of cross-reference runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"direction"}),
	}

	m.registry.MustRegister(
		m.skipped,
		m.matches,
		m.notifications,
		m.channelSends,
		m.runDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// RecordSkip counts one skipped candidate.
func (m *Metrics) RecordSkip(reason facematch.SkipReason) {
	m.skipped.WithLabelValues(string(reason)).Inc()
}

// RecordMatches adds n threshold-clearing comparisons.
func (m *Metrics) RecordMatches(n int) {
	m.matches.Add(float64(n))
}

// RecordNotification counts a notification outcome (ResultCreated, ResultDuplicate or ResultFailed).
func (m *Metrics) RecordNotification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// RecordChannelSend counts a channel delivery outcome.
func (m *Metrics) RecordChannelSend(err error) {
	if err != nil {
		m.channelSends.WithLabelValues(SendFailed).Inc()
		return
	}
	m.channelSends.WithLabelValues(SendOK).Inc()
}

// ObserveRun records the duration of a run in the given direction ("report" or "sighting").
func (m *Metrics) ObserveRun(direction string, d time.Duration) {
	m.runDuration.WithLabelValues(direction).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
