package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for SubmissionsTotal.
const (
	OutcomeSucceeded        = "succeeded"
	OutcomeHTTPError        = "http_error"
	OutcomeApplicationError = "application_error"
	OutcomeNetworkError     = "network_error"
	OutcomeSuperseded       = "superseded"
)

// Metrics holds the Prometheus collectors for a chart-signal session.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ValidationRejections *prometheus.CounterVec // labels: reason
	SubmissionsTotal     *prometheus.CounterVec // labels: outcome
	SubmissionDur        prometheus.Histogram
	HistoryEvictions     prometheus.Counter
	HistorySize          prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers all collectors on reg. A nil reg uses a private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ValidationRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartsignal_validation_rejections_total",
			Help: "Candidate files rejected by intake validation",
		}, []string{"reason"}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartsignal_submissions_total",
			Help: "Resolved prediction submissions by outcome",
		}, []string{"outcome"}),
		SubmissionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartsignal_submission_duration_seconds",
			Help:    "Time from dispatch to resolution of a prediction request",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		HistoryEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartsignal_history_evictions_total",
			Help: "History entries dropped by the size cap",
		}),
		HistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartsignal_history_size",
			Help: "Current number of history entries",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.ValidationRejections,
		m.SubmissionsTotal,
		m.SubmissionDur,
		m.HistoryEvictions,
		m.HistorySize,
	)
	return m
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.ValidationRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Resolved(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
	m.SubmissionDur.Observe(elapsed.Seconds())
}

func (m *Metrics) HistoryRecorded(size, evicted int) {
	if m == nil {
		return
	}
	m.HistorySize.Set(float64(size))
	if evicted > 0 {
		m.HistoryEvictions.Add(float64(evicted))
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
