package observers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fallback kinds tracked by FallbackTotal.
const (
	FallbackModelError           = "model_error"
	FallbackToolPipelineOverride = "tool_pipeline_override"
	FallbackMaxToolCalls         = "max_tool_calls"
	FallbackGroundingViolation   = "grounding_violation"
	FallbackMissingRequiredField = "missing_required_field"
	FallbackMaxWallClock         = "max_wall_clock"
)

var (
	ToolLatencyMS = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_tool_latency_ms",
			Help:    "Query tool call latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"tool"},
	)

	ToolErrorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_error_total",
			Help: "Query tool calls that failed after retries.",
		},
		[]string{"tool"},
	)

	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_fallback_total",
			Help: "Guardrail and degradation fallbacks by kind.",
		},
		[]string{"kind"},
	)

	ModelTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_model_tokens_total",
			Help: "LLM tokens consumed, by model and direction.",
		},
		[]string{"model", "direction"},
	)

	TurnDurationMS = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_turn_duration_ms",
			Help:    "End-to-end turn duration in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		},
	)
)
