// Package metrics exports postbox execution metrics to Prometheus.
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

const namespace = "postbox"

// Execution describes one finished execution attempt.
type Execution struct {
	Method string
	// Outcome is the terminal attempt state, completed or failed.
	Outcome  string
	Kind     string
	Status   int
	Duration time.Duration
}

// Recorder receives execution events from the runner.
type Recorder interface {
	ObserveExecution(e Execution)
	ExecutionStarted()
	ExecutionFinished()
	ObserveUnresolved(count int)
}

// PrometheusRecorder implements Recorder with client_golang collectors.
type PrometheusRecorder struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	unresolved prometheus.Counter
}

func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	return &PrometheusRecorder{
		executions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "The number of finished request executions by method, outcome, error kind and status code.",
			}, []string{"method", "outcome", "kind", "status"}),

		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Wall time of request executions, from dispatch to the last response byte.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "outcome"}),

		inFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "executions_in_flight",
				Help:      "The number of executions currently waiting on an outbound call.",
			}),

		unresolved: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unresolved_placeholders_total",
				Help:      "Placeholders left verbatim because the environment had no value for them.",
			}),
	}
}

func (m *PrometheusRecorder) ObserveExecution(e Execution) {
	status := ""
	if e.Status > 0 {
		status = strconv.Itoa(e.Status)
	}
	m.executions.WithLabelValues(e.Method, e.Outcome, e.Kind, status).Inc()
	m.duration.WithLabelValues(e.Method, e.Outcome).Observe(e.Duration.Seconds())
}

func (m *PrometheusRecorder) ExecutionStarted() {
	m.inFlight.Inc()
}

func (m *PrometheusRecorder) ExecutionFinished() {
	m.inFlight.Dec()
}

func (m *PrometheusRecorder) ObserveUnresolved(count int) {
	if count > 0 {
		m.unresolved.Add(float64(count))
	}
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g in the Prometheus exposition format.
// Responses are never compressed here; the API server's gzip middleware does that.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{DisableCompression: true})
}

// NoOpRecorder drops every event.
type NoOpRecorder struct{}

func (NoOpRecorder) ObserveExecution(Execution) {}
func (NoOpRecorder) ExecutionStarted()          {}
func (NoOpRecorder) ExecutionFinished()         {}
func (NoOpRecorder) ObserveUnresolved(int)      {}

// EnsureRecorder returns r, or a no-op recorder when r is nil.
func EnsureRecorder(r Recorder) Recorder {
	if r == nil {
		return NoOpRecorder{}
	}
	return r
}
