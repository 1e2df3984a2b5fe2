// Package gwmetrics exposes the gateway's Prometheus counters for
// turns, routing decisions, tool invocations, and shadow outcomes.
package gwmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter the gateway records.
type Metrics struct {
	// TurnsTotal counts completed chat-completion turns by finish reason.
	// Labels: agent, finish_reason
	TurnsTotal *prometheus.CounterVec

	// RoutingDecisionsTotal counts C4 routing outcomes by selected agent.
	// Labels: agent
	RoutingDecisionsTotal *prometheus.CounterVec

	// ToolInvocationsTotal counts C2 tool calls by name, source, and outcome.
	// Labels: tool, source (remote|local-fallback, empty for failed calls), outcome (ok|error)
	ToolInvocationsTotal *prometheus.CounterVec

	// ShadowOutcomesTotal counts C6 shadow task terminal states.
	// Labels: outcome (completed|dropped|failed)
	ShadowOutcomesTotal *prometheus.CounterVec
}

// New registers and returns the gateway's metric set against the
// default Prometheus registry.
func New() *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myndy_gateway_turns_total",
				Help: "Total number of chat-completion turns by agent and finish reason",
			},
			[]string{"agent", "finish_reason"},
		),
		RoutingDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myndy_gateway_routing_decisions_total",
				Help: "Total number of routing decisions by selected agent",
			},
			[]string{"agent"},
		),
		ToolInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myndy_gateway_tool_invocations_total",
				Help: "Total number of tool invocations by tool, source, and outcome",
			},
			[]string{"tool", "source", "outcome"},
		),
		ShadowOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myndy_gateway_shadow_outcomes_total",
				Help: "Total number of shadow observer terminal outcomes",
			},
			[]string{"outcome"},
		),
	}
}
