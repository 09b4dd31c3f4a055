package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus instruments:
//   - hft_requests_total{endpoint}          – API requests served
//   - hft_pipeline_runs_total{command,status} – train/backtest subprocesses
//   - hft_pipeline_run_seconds{command}     – subprocess wall time
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	runs     *prometheus.CounterVec
	runTime  *prometheus.HistogramVec
}

// NewMetrics creates and registers the server metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hft_requests_total",
				Help: "API requests served",
			},
			[]string{"endpoint"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hft_pipeline_runs_total",
				Help: "Pipeline subprocesses by command and status",
			},
			[]string{"command", "status"},
		),
		runTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hft_pipeline_run_seconds",
				Help:    "Pipeline subprocess wall time",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"command"},
		),
	}
	m.registry.MustRegister(m.requests, m.runs, m.runTime)
	return m
}

// Handler serves the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Request counts one served request.
func (m *Metrics) Request(endpoint string) {
	m.requests.WithLabelValues(endpoint).Inc()
}

// Run records one finished subprocess.
func (m *Metrics) Run(command string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(command, status).Inc()
	m.runTime.WithLabelValues(command).Observe(elapsed.Seconds())
}
