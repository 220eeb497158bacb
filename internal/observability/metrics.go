package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type engineMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	iterations       prometheus.Histogram

	backendCallsTotal   *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolAttemptsTotal     *prometheus.CounterVec

	sessionLoadDuration *prometheus.HistogramVec
	sessionSaveDuration *prometheus.HistogramVec
	sessionsDeleted     *prometheus.CounterVec

	retrievalDuration prometheus.Histogram
	retrievalChunks   prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *engineMetrics
)

func getMetrics() *engineMetrics {
	metricsOnce.Do(func() {
		m := &engineMetrics{
			requestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentengine_requests_total",
					Help: "Engine requests by profile and outcome (final, budget_exceeded, backend_error, abandoned).",
				},
				[]string{"profile", "outcome"},
			),
			requestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentengine_request_duration_seconds",
					Help:    "End-to-end engine request duration in seconds by profile.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"profile"},
			),
			requestsInFlight: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "agentengine_requests_in_flight",
					Help: "Engine requests currently producing events.",
				},
			),
			iterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agentengine_iterations",
					Help:    "Reasoning iterations used per request.",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
				},
			),
			backendCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentengine_backend_calls_total",
					Help: "Reasoning backend calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			backendCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentengine_backend_call_duration_seconds",
					Help:    "Reasoning backend call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentengine_tool_execution_total",
					Help: "Tool executions by tool and final status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentengine_tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool, all attempts included.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolAttemptsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentengine_tool_attempts_total",
					Help: "Individual tool handler attempts by tool and status.",
				},
				[]string{"tool", "status"},
			),
			sessionLoadDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentengine_session_load_duration_seconds",
					Help:    "Session load duration in seconds by store driver.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"driver"},
			),
			sessionSaveDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentengine_session_save_duration_seconds",
					Help:    "Session save duration in seconds by store driver.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"driver"},
			),
			sessionsDeleted: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentengine_sessions_deleted_total",
					Help: "Sessions deleted by reason (cleanup, manual).",
				},
				[]string{"reason"},
			),
			retrievalDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agentengine_retrieval_duration_seconds",
					Help:    "Profile pre-fetch retrieval duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			retrievalChunks: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agentengine_retrieval_chunks",
					Help:    "Chunks returned per pre-fetch.",
					Buckets: []float64{0, 1, 2, 3, 5, 10},
				},
			),
		}

		prometheus.MustRegister(
			m.requestsTotal,
			m.requestDuration,
			m.requestsInFlight,
			m.iterations,
			m.backendCallsTotal,
			m.backendCallDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolAttemptsTotal,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.sessionsDeleted,
			m.retrievalDuration,
			m.retrievalChunks,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordRequest(profile, outcome string, duration time.Duration, iterations int) {
	m := getMetrics()
	m.requestsTotal.WithLabelValues(profile, outcome).Inc()
	m.requestDuration.WithLabelValues(profile).Observe(duration.Seconds())
	m.iterations.Observe(float64(iterations))
}

func RequestStarted() {
	getMetrics().requestsInFlight.Inc()
}

func RequestFinished() {
	getMetrics().requestsInFlight.Dec()
}

func RecordBackendCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.backendCallsTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.backendCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordToolAttempt(tool string, success bool) {
	getMetrics().toolAttemptsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
}

func RecordToolExecution(tool string, duration time.Duration, status string) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordSessionLoad(driver string, duration time.Duration) {
	getMetrics().sessionLoadDuration.WithLabelValues(driver).Observe(duration.Seconds())
}

func RecordSessionSave(driver string, duration time.Duration) {
	getMetrics().sessionSaveDuration.WithLabelValues(driver).Observe(duration.Seconds())
}

func RecordSessionsDeleted(reason string, count int) {
	getMetrics().sessionsDeleted.WithLabelValues(reason).Add(float64(count))
}

func RecordRetrieval(duration time.Duration, chunks int) {
	m := getMetrics()
	m.retrievalDuration.Observe(duration.Seconds())
	m.retrievalChunks.Observe(float64(chunks))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
