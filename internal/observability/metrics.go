package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics centralizes Prometheus instrumentation for goal processing,
// LLM calls, tool executions, the autonomous loop, and the scheduler.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.GoalsProcessed.WithLabelValues("tool", "true").Inc()
type Metrics struct {
	// GoalsProcessed counts goals by intent and success.
	GoalsProcessed *prometheus.CounterVec

	// GoalDuration measures end-to-end goal processing latency.
	GoalDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM call latency.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM calls by status.
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution latency.
	ToolExecutionDuration *prometheus.HistogramVec

	// ForgeAttempts counts Forge synthesis attempts by outcome.
	ForgeAttempts *prometheus.CounterVec

	// AutoloopCycles counts autonomous-loop check cycles by outcome.
	AutoloopCycles *prometheus.CounterVec

	// AutoloopDeployments counts tool deployments and rollbacks.
	AutoloopDeployments *prometheus.CounterVec

	// SchedulerRuns counts scheduled-goal executions by outcome.
	SchedulerRuns *prometheus.CounterVec

	// EventBusSize tracks the current event stream length.
	EventBusSize prometheus.Gauge
}

// NewMetrics creates and registers all metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the default
// registry; pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := prometheus.WrapRegistererWithPrefix("axonforge_", reg)

	m := &Metrics{
		GoalsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "goals_total", Help: "Goals processed by intent and success"},
			[]string{"intent", "success"},
		),
		GoalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goal_duration_seconds",
				Help:    "End-to-end goal processing duration",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"intent"},
		),
		LLMRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "LLM API call latency",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		LLMRequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "llm_requests_total", Help: "LLM requests by operation and status"},
			[]string{"operation", "status"},
		),
		ToolExecutionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tool_executions_total", Help: "Tool executions by tool name and status"},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Tool execution latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ForgeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "forge_attempts_total", Help: "Forge synthesis attempts by outcome"},
			[]string{"outcome"},
		),
		AutoloopCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "autoloop_cycles_total", Help: "Autonomous loop cycles by outcome"},
			[]string{"outcome"},
		),
		AutoloopDeployments: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "autoloop_deployments_total", Help: "Tool deployments and rollbacks"},
			[]string{"action"},
		),
		SchedulerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "scheduler_runs_total", Help: "Scheduled goal executions by outcome"},
			[]string{"outcome"},
		),
		EventBusSize: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "event_bus_size", Help: "Current number of events in the bus"},
		),
	}

	factory.MustRegister(
		m.GoalsProcessed, m.GoalDuration, m.LLMRequestDuration, m.LLMRequestCounter,
		m.ToolExecutionCounter, m.ToolExecutionDuration, m.ForgeAttempts,
		m.AutoloopCycles, m.AutoloopDeployments, m.SchedulerRuns, m.EventBusSize,
	)
	return m
}
