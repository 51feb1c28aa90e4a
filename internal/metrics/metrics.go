package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ffmpeg_mcp"

// executionBuckets spans sub-second probes up to the ten minute default cap
var executionBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// Metrics holds all Prometheus metrics for the application. It implements
// sandbox.Observer and gateway.RequestObserver.
type Metrics struct {
	registry *prometheus.Registry

	// Execution metrics
	ExecutionsTotal        *prometheus.CounterVec
	ExecutionDuration      *prometheus.HistogramVec
	ExecutionsInFlight     prometheus.Gauge
	AdmissionRejectedTotal prometheus.Counter
	OutputTruncatedTotal   *prometheus.CounterVec
	OutputDroppedBytes     *prometheus.CounterVec

	// Protocol metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	WebSocketClients prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of finished ffmpeg executions by termination cause",
			},
			[]string{"cause"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Wall-clock duration of ffmpeg executions in seconds",
				Buckets:   executionBuckets,
			},
			[]string{"cause"},
		),
		ExecutionsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "executions_in_flight",
				Help:      "Number of admitted executions that have not been reaped",
			},
		),
		AdmissionRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_rejected_total",
				Help:      "Total number of executions refused at the concurrency cap",
			},
		),
		OutputTruncatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_truncated_total",
				Help:      "Total number of executions whose captured stream was truncated",
			},
			[]string{"stream"},
		),
		OutputDroppedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_dropped_bytes_total",
				Help:      "Total bytes discarded beyond the per-stream capture cap",
			},
			[]string{"stream"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of JSON-RPC messages handled by method and error code",
			},
			[]string{"method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "Duration of JSON-RPC handlers in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		WebSocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Number of connected WebSocket clients at the last maintenance pass",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ExecutionsTotal)
	m.registry.MustRegister(m.ExecutionDuration)
	m.registry.MustRegister(m.ExecutionsInFlight)
	m.registry.MustRegister(m.AdmissionRejectedTotal)
	m.registry.MustRegister(m.OutputTruncatedTotal)
	m.registry.MustRegister(m.OutputDroppedBytes)

	m.registry.MustRegister(m.RequestsTotal)
	m.registry.MustRegister(m.RequestDuration)
	m.registry.MustRegister(m.WebSocketClients)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ExecutionAdmitted records a process passing admission
func (m *Metrics) ExecutionAdmitted(inFlight int) {
	m.ExecutionsInFlight.Set(float64(inFlight))
}

// ExecutionRejected records a refusal at the concurrency cap
func (m *Metrics) ExecutionRejected() {
	m.AdmissionRejectedTotal.Inc()
}

// ExecutionFinished records a reaped process
func (m *Metrics) ExecutionFinished(res sandbox.Result, inFlight int) {
	cause := string(res.Cause)

	m.ExecutionsTotal.WithLabelValues(cause).Inc()
	m.ExecutionDuration.WithLabelValues(cause).Observe(res.Duration.Seconds())
	m.ExecutionsInFlight.Set(float64(inFlight))

	if res.Stdout.Truncated {
		m.OutputTruncatedTotal.WithLabelValues("stdout").Inc()
		m.OutputDroppedBytes.WithLabelValues("stdout").Add(float64(res.Stdout.Dropped))
	}
	if res.Stderr.Truncated {
		m.OutputTruncatedTotal.WithLabelValues("stderr").Inc()
		m.OutputDroppedBytes.WithLabelValues("stderr").Add(float64(res.Stderr.Dropped))
	}
}

// RequestHandled records one dispatched JSON-RPC message; code 0 means success
func (m *Metrics) RequestHandled(method string, code int, duration time.Duration) {
	label := "ok"
	if code != 0 {
		label = strconv.Itoa(code)
	}

	m.RequestsTotal.WithLabelValues(method, label).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetWebSocketClients records the connected client count
func (m *Metrics) SetWebSocketClients(n int) {
	m.WebSocketClients.Set(float64(n))
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
