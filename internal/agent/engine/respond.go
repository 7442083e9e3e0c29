package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/eino/schema"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/grounding"
	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/observers"
	"github.com/stayfinder/agent/internal/agent/prompts"
)

const respondAttempts = 3

// respond renders the turn output. Offer displays and confirmations render
// deterministically from tool data; clarify/generic text comes from the
// responder model under grounding validation.
func (e *Engine) respond(ctx context.Context, st *model.TurnState) step {
	action := &model.AgentActionRespond{Type: "respond", Kind: model.RespondGeneric}
	if st.PendingAction != nil && st.PendingAction.Respond != nil {
		action = st.PendingAction.Respond
	}
	kind := action.Kind
	if kind == "" {
		kind = model.RespondGeneric
	}

	if kind == model.RespondConfirm || st.SelectedOfferID != "" {
		e.respondConfirm(st)
		finishSelection(st)
		return stepDone
	}

	if len(st.RankedOffers) > 0 {
		cards, _, _ := buildOfferCards(st)
		st.RecommendedOffers = cards
		st.AssistantMessage = renderTopOffers(st.Constraints, cards)
		st.AgentState = model.StateWaitForSelection
		finishSelection(st)
		return stepDone
	}

	e.respondGenerated(ctx, st, kind, action.Message)

	if kind == model.RespondClarify {
		st.AgentState = model.StateCollectConstraints
	} else {
		st.AgentState = model.StateRespond
	}
	finishSelection(st)
	return stepDone
}

// respondConfirm renders the selected offer strictly from tool-provided
// session data; the model never gets to guess here.
func (e *Engine) respondConfirm(st *model.TurnState) {
	selected := findSelectedOffer(st)
	if selected == nil {
		st.AssistantMessage = "I couldn't find that offer_id in this session. " +
			"Please reply with one of the offer_id values I listed, or ask me to search again."
		st.AgentState = model.StateWaitForSelection
		return
	}
	st.AssistantMessage = renderSelectedOffer(st.Constraints, *selected)
	st.AgentState = model.StateConfirm
}

// respondGenerated runs the responder model with bounded regeneration. When
// recommended offers are in context, every price and timestamp the model
// mentions must match the tool-provided allow-sets; violations trigger a
// corrective retry and finally a fixed fallback.
func (e *Engine) respondGenerated(ctx context.Context, st *model.TurnState, kind, hint string) {
	contextDoc := map[string]any{
		"constraints":             st.Constraints,
		"missing_required_fields": st.Constraints.MissingRequired(),
		"hint":                    hint,
		"tool_timeline":           st.Events,
		"candidates_n":            len(st.Candidates),
		"offers_n":                len(st.Offers),
		"ranked_offers_n":         len(st.RankedOffers),
	}

	var allowedPrices []float64
	var allowedTS []time.Time
	if len(st.RecommendedOffers) > 0 {
		contextDoc["offers"] = st.RecommendedOffers
		allowedPrices, allowedTS = allowSets(st.RecommendedOffers)
	}

	contextJSON, err := json.Marshal(contextDoc)
	if err != nil {
		contextJSON = []byte("{}")
	}
	prompt := prompts.Respond(kind, st.UserMessage, string(contextJSON))

	user := prompt
	for attempt := 0; attempt < respondAttempts; attempt++ {
		out, err := e.responder.Generate(ctx, []*schema.Message{
			schema.SystemMessage(prompts.SystemPrompt),
			schema.UserMessage(user),
		})
		if err != nil {
			observers.FallbackTotal.WithLabelValues(observers.FallbackModelError).Inc()
			logx.Warn().Int("attempt", attempt).Err(err).Msg("response generation failed")
			user = prompt + "\n\nModel error. Try again with concise output."
			continue
		}

		msg := out.Content
		if len(allowedPrices) > 0 || len(allowedTS) > 0 {
			if gerr := grounding.Validate(msg, allowedPrices, allowedTS); gerr != nil {
				observers.FallbackTotal.WithLabelValues(observers.FallbackGroundingViolation).Inc()
				logx.Warn().Int("attempt", attempt).Err(gerr).Msg("response failed grounding")
				user = prompt + "\n\nYour response included values not present in CONTEXT_JSON. " +
					"Rewrite using only tool-grounded values. Do not add or compute any prices/timestamps."
				continue
			}
		}

		st.AssistantMessage = msg
		return
	}

	st.AssistantMessage = "I couldn't produce a valid response (missing required fields or grounding). " +
		"Please retry your last message."
}

func finishSelection(st *model.TurnState) {
	if st.SelectedOfferID != "" {
		st.LastSelectedOfferID = st.SelectedOfferID
		st.SelectedOfferID = ""
	}
}
