// Package observability exposes prometheus metrics for the
// conversation loop, model routing and tool execution.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	turnTotal    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	routeTotal *prometheus.CounterVec

	streamEventsTotal *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	tokensTotal *prometheus.CounterVec

	activeSessions prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "naia_turn_total",
					Help: "Total conversation turns by model and status.",
				},
				[]string{"model", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "naia_turn_duration_seconds",
					Help:    "Turn duration in seconds by model.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"model"},
			),
			routeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "naia_route_total",
					Help: "Total routing decisions by chosen model and reason.",
				},
				[]string{"model", "reason"},
			),
			streamEventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "naia_stream_events_total",
					Help: "Total stream events emitted by type.",
				},
				[]string{"type"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "naia_tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "naia_tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "naia_tokens_total",
					Help: "Total tokens consumed by model and direction.",
				},
				[]string{"model", "direction"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "naia_active_sessions",
					Help: "Current active session count.",
				},
			),
		}

		prometheus.MustRegister(
			m.turnTotal,
			m.turnDuration,
			m.routeTotal,
			m.streamEventsTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.tokensTotal,
			m.activeSessions,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it
// is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordTurn records one completed turn.
func RecordTurn(model string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.turnTotal.WithLabelValues(model, status).Inc()
	m.turnDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordRoute records one routing decision.
func RecordRoute(model, reason string) {
	getMetrics().routeTotal.WithLabelValues(model, reason).Inc()
}

// RecordStreamEvent records one emitted stream event.
func RecordStreamEvent(eventType string) {
	getMetrics().streamEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordToolExecution records one tool invocation.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordTokens records token consumption for one turn.
func RecordTokens(model string, input, output int) {
	m := getMetrics()
	m.tokensTotal.WithLabelValues(model, "input").Add(float64(input))
	m.tokensTotal.WithLabelValues(model, "output").Add(float64(output))
}

// SetActiveSessions updates the live session gauge.
func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}
