package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cloudwego/eino/schema"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/observers"
	"github.com/stayfinder/agent/internal/agent/parsers"
	"github.com/stayfinder/agent/internal/agent/prompts"
)

const decideAttempts = 2

// decide runs constraint resolution, cache reconciliation and the decision
// model, then applies the guardrail overrides that keep tool execution on the
// canonical search -> price -> rank order.
func (e *Engine) decide(ctx context.Context, st *model.TurnState) step {
	var extractedOfferID string
	if st.ToolCallsThisTurn == 0 {
		res := e.pipeline.Run(ctx, st)
		if res.Clarification != nil {
			st.AssistantMessage = res.Clarification.Question
			st.AgentState = model.StateCollectConstraints
			return stepDone
		}
		extractedOfferID = res.OfferID
	}

	e.reconcileToolCache(st)

	// No-repricing workflow: a user-provided offer id is a selection, not a
	// reason to call tools again. Without offer context in the session there
	// is nothing grounded to confirm, so ask to re-shop.
	if extractedOfferID != "" {
		if st.HasOfferContext() {
			st.SelectedOfferID = extractedOfferID
			st.PendingAction = model.RespondAction(model.RespondConfirm,
				"Confirm the selected offer using only tool-provided fields already present in session context.")
		} else {
			st.PendingAction = model.RespondAction(model.RespondClarify,
				"I don't have that offer loaded in this session. Do you want me to search again (same city/dates), or provide the city + dates + adults + rooms?")
		}
		return stepRespond
	}

	action, err := e.decideAction(ctx, st)
	if err != nil {
		observers.FallbackTotal.WithLabelValues(observers.FallbackModelError).Inc()
		logx.Error().Str("session_id", st.SessionID).Err(err).Msg("decision failed")
		st.PendingAction = model.RespondAction(model.RespondGeneric, "Model decision failed.")
		return stepRespond
	}

	if a := action.CallTool; a != nil {
		st.Constraints = st.Constraints.Merge(a.ConstraintsUpdate)
		if !st.Constraints.IsComplete() {
			// A tool proposal without complete constraints becomes the fixed
			// clarification listing exactly the missing fields.
			observers.FallbackTotal.WithLabelValues(observers.FallbackMissingRequiredField).Inc()
			st.AssistantMessage = model.ClarifyMessage(st.Constraints.MissingRequired(), st.Constraints)
			st.AgentState = model.StateCollectConstraints
			return stepDone
		}
		expected := nextPipelineTool(st)
		if expected == "" {
			// Ranked offers already cached; stop tool looping.
			st.PendingAction = model.RespondAction(model.RespondExplain, "Show top offers.")
			return stepRespond
		}
		if a.ToolName != expected {
			observers.FallbackTotal.WithLabelValues(observers.FallbackToolPipelineOverride).Inc()
			logx.Info().Str("proposed", a.ToolName).Str("expected", expected).Msg("tool pipeline override")
			st.PendingAction = model.CallToolAction(expected)
			return stepCallTool
		}
		st.PendingAction = action
		return stepCallTool
	}

	a := action.Respond
	prev := st.Constraints
	st.Constraints = st.Constraints.Merge(a.ConstraintsUpdate)
	st.PendingAction = action

	// Complete constraints must run the tool pipeline before any response;
	// a premature "respond" here invites tool roleplay.
	if st.Constraints.IsComplete() {
		if expected := nextPipelineTool(st); expected != "" {
			st.PendingAction = model.CallToolAction(expected)
			return stepCallTool
		}
	}

	// Repeated clarify with no constraint progress ends the turn with the
	// fixed template instead of re-asking in model words.
	missing := st.Constraints.MissingRequired()
	if a.Kind == model.RespondClarify && len(missing) > 0 && reflect.DeepEqual(prev, st.Constraints) {
		st.AssistantMessage = model.ClarifyMessage(missing, st.Constraints)
		st.AgentState = model.StateCollectConstraints
		return stepDone
	}

	return stepRespond
}

// reconcileToolCache drops cached tool results when the tool-relevant
// constraints no longer match the fingerprint they were produced under.
// Cached data without any fingerprint comes from a snapshot written before
// fingerprints existed and is treated as stale once.
func (e *Engine) reconcileToolCache(st *model.TurnState) {
	if st.HasToolCache() && !st.HasFingerprint {
		logx.Info().Str("session_id", st.SessionID).Str("kind", "missing_fingerprint").Msg("tool cache invalidated")
		st.InvalidateToolCache()
	}
	cur := st.Constraints.Fingerprint()
	if st.HasFingerprint && st.Fingerprint != "" && st.Fingerprint != cur {
		logx.Info().
			Str("session_id", st.SessionID).
			Str("prev_key", st.Fingerprint).
			Str("new_key", cur).
			Msg("tool cache invalidated")
		st.InvalidateToolCache()
	}
}

// nextPipelineTool returns the canonical next tool, or "" once ranked offers
// exist. Callers check completeness first.
func nextPipelineTool(st *model.TurnState) string {
	switch {
	case len(st.Candidates) == 0:
		return model.ToolSearchCandidates
	case len(st.Offers) == 0:
		return model.ToolGetOffers
	case len(st.RankedOffers) == 0:
		return model.ToolRankOffers
	default:
		return ""
	}
}

func (e *Engine) decideAction(ctx context.Context, st *model.TurnState) (*model.AgentAction, error) {
	stateJSON, err := json.Marshal(e.decideState(st))
	if err != nil {
		return nil, err
	}
	prompt := prompts.Decide(st.UserMessage, string(stateJSON))

	user := prompt
	var lastErr error
	for attempt := 0; attempt < decideAttempts; attempt++ {
		out, err := e.decider.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompts.DecideSystemPrompt),
			schema.UserMessage(user),
		})
		if err == nil {
			var action *model.AgentAction
			action, err = decodeAction(out.Content)
			if err == nil {
				return action, nil
			}
		}
		lastErr = err
		logx.Info().Int("attempt", attempt).Err(err).Msg("decision parse failed")
		user = prompt + prompts.DecideRetryReminder
	}
	return nil, lastErr
}

func (e *Engine) decideState(st *model.TurnState) map[string]any {
	recent := st.RecentTurns
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	return map[string]any{
		"today_utc":               e.now().UTC().Format(model.DateISO),
		"constraints":             st.Constraints,
		"recent_turns":            recent,
		"has_candidates":          len(st.Candidates) > 0,
		"candidates_n":            len(st.Candidates),
		"has_offers":              len(st.Offers) > 0,
		"offers_n":                len(st.Offers),
		"has_ranked_offers":       len(st.RankedOffers) > 0,
		"ranked_offers_n":         len(st.RankedOffers),
		"tool_calls_this_turn":    st.ToolCallsThisTurn,
		"max_tool_calls_per_turn": e.guardrails.MaxToolCallsPerTurn,
	}
}

// decodeAction parses the tagged action union: peek at the type tag, then
// strict-decode the matching variant.
func decodeAction(text string) (*model.AgentAction, error) {
	obj, err := parsers.FirstJSONObject(text)
	if err != nil {
		return nil, err
	}
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(obj), &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case "call_tool":
		var a model.AgentActionCallTool
		if err := parsers.DecodeStrict(obj, &a); err != nil {
			return nil, err
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		return &model.AgentAction{CallTool: &a}, nil
	case "respond":
		var a model.AgentActionRespond
		if err := parsers.DecodeStrict(obj, &a); err != nil {
			return nil, err
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		return &model.AgentAction{Respond: &a}, nil
	default:
		return nil, fmt.Errorf("unknown action type: %q", tag.Type)
	}
}
