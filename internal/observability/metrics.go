package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	sseClientsActive     prometheus.Gauge
	runEventsFanoutTotal *prometheus.CounterVec
	advisorSessionsTotal prometheus.Counter
	advisorRepliesTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the HTTP surface
// and the realtime fan-out. Engine collectors register themselves in their
// own packages.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sse_clients_active",
			Help: "Run progress stream subscribers currently connected.",
		})

		runEventsFanoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_events_fanout_total",
			Help: "Run progress events fanned out to subscribers, by event kind.",
		}, []string{"kind"})

		advisorSessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_sessions_total",
			Help: "Advisor websocket sessions opened.",
		})

		advisorRepliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_replies_total",
			Help: "Advisor replies generated, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			sseClientsActive,
			runEventsFanoutTotal,
			advisorSessionsTotal,
			advisorRepliesTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SSEClientsActive exposes the gauge of connected stream subscribers.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// RunEventsFanout exposes the counter for fanned-out run events.
func RunEventsFanout() *prometheus.CounterVec {
	RegisterMetrics()
	return runEventsFanoutTotal
}

// AdvisorSessions exposes the counter for advisor websocket sessions.
func AdvisorSessions() prometheus.Counter {
	RegisterMetrics()
	return advisorSessionsTotal
}

// AdvisorReplies exposes the counter for advisor reply outcomes.
func AdvisorReplies() *prometheus.CounterVec {
	RegisterMetrics()
	return advisorRepliesTotal
}
