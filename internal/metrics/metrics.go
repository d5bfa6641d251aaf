package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_gateway_turns_total",
			Help: "Total number of conversation turns by final status",
		},
		[]string{"status"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "assist_gateway_turn_duration_seconds",
			Help: "End-to-end turn processing duration in seconds",
		},
	)

	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_gateway_provider_attempts_total",
			Help: "Provider completion attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_gateway_provider_fallbacks_total",
			Help: "Fallbacks to the next provider tier by error class",
		},
		[]string{"class"},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_gateway_tool_executions_total",
			Help: "Tool executions by tool name and outcome",
		},
		[]string{"tool", "outcome"},
	)

	PendingConfirmations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assist_gateway_pending_confirmations",
			Help: "Number of confirmation sessions currently pending",
		},
	)

	ActiveStates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assist_gateway_active_conversation_states",
			Help: "Number of active conversation states",
		},
	)

	ActiveTraces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assist_gateway_active_traces",
			Help: "Number of in-flight request traces",
		},
	)
)
