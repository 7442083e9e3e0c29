package engine

import (
	"context"
	"time"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/llm"
	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/observers"
	"github.com/stayfinder/agent/internal/agent/resolvers"
	"github.com/stayfinder/agent/internal/agent/toolclient"
)

// step identifies the next state of the turn loop.
type step int

const (
	stepDecide step = iota
	stepCallTool
	stepRespond
	stepDone
)

// Engine drives one conversation turn through the DECIDE, CALL_TOOL and
// RESPOND states. The decision model proposes actions; deterministic
// guardrails keep tool execution on the canonical pipeline and the output
// grounded in tool data.
type Engine struct {
	decider    llm.Generator
	responder  llm.Generator
	pipeline   *resolvers.Pipeline
	tools      *toolclient.Client
	guardrails model.GuardrailConfig
	tenantID   string
	now        func() time.Time
}

// New creates an engine. The resolver model handles structured resolution and
// decision calls; the responder model generates user-facing text.
func New(resolver, responder llm.Generator, tools *toolclient.Client, guardrails model.GuardrailConfig, tenantID string) *Engine {
	return &Engine{
		decider:    resolver,
		responder:  responder,
		pipeline:   resolvers.NewPipeline(resolver),
		tools:      tools,
		guardrails: guardrails,
		tenantID:   tenantID,
		now:        time.Now,
	}
}

// Turn runs the state machine until the turn produces an assistant message.
// Termination is guaranteed: the tool budget bounds CALL_TOOL loops and every
// other transition leads to RESPOND or ends the turn directly.
func (e *Engine) Turn(ctx context.Context, st *model.TurnState) {
	start := time.Now()

	next := stepDecide
	for next != stepDone {
		switch next {
		case stepDecide:
			next = e.decide(ctx, st)
		case stepCallTool:
			next = e.callTool(ctx, st)
		case stepRespond:
			next = e.respond(ctx, st)
		}
	}

	elapsed := time.Since(start).Milliseconds()
	observers.TurnDurationMS.Observe(float64(elapsed))
	if elapsed > int64(e.guardrails.MaxWallClockMS) {
		observers.FallbackTotal.WithLabelValues(observers.FallbackMaxWallClock).Inc()
		logx.Warn().
			Str("session_id", st.SessionID).
			Int64("elapsed_ms", elapsed).
			Int("budget_ms", e.guardrails.MaxWallClockMS).
			Msg("turn exceeded wall clock budget")
	}
	logx.Info().
		Str("session_id", st.SessionID).
		Str("agent_state", st.AgentState).
		Int("tool_calls", st.ToolCallsThisTurn).
		Int64("elapsed_ms", elapsed).
		Msg("turn complete")
}
