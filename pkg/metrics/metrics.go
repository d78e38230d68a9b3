// Package metrics exposes Prometheus counters for the chat pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters. A nil *Metrics is safe to use and
// records nothing, so tests never need a registry.
type Metrics struct {
	registry *prometheus.Registry

	ChatRequests        *prometheus.CounterVec
	ToolExecutions      *prometheus.CounterVec
	SchemaRepairs       *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	TokensUsed          *prometheus.CounterVec
}

// New creates a metrics set on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neur_chat_requests_total",
			Help: "Chat requests by outcome.",
		}, []string{"outcome"}),
		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neur_tool_executions_total",
			Help: "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		SchemaRepairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neur_schema_repairs_total",
			Help: "Argument repair attempts by outcome.",
		}, []string{"outcome"}),
		PersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "neur_persistence_failures_total",
			Help: "Message or usage persistence failures (absorbed, never surfaced).",
		}),
		TokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neur_tokens_used_total",
			Help: "Tokens consumed by kind (prompt, completion).",
		}, []string{"kind"}),
	}
}

// Handler serves the metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CountChatRequest records a chat request outcome.
func (m *Metrics) CountChatRequest(outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
}

// CountToolExecution records a tool run.
func (m *Metrics) CountToolExecution(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ToolExecutions.WithLabelValues(tool, outcome).Inc()
}

// CountRepair records an argument repair attempt.
func (m *Metrics) CountRepair(outcome string) {
	if m == nil {
		return
	}
	m.SchemaRepairs.WithLabelValues(outcome).Inc()
}

// CountPersistenceFailure records an absorbed persistence error.
func (m *Metrics) CountPersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// CountTokens records token usage.
func (m *Metrics) CountTokens(prompt, completion int) {
	if m == nil {
		return
	}
	m.TokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.TokensUsed.WithLabelValues("completion").Add(float64(completion))
}
