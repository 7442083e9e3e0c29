package engine

import (
	"context"
	"encoding/json"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/observers"
)

// callTool enforces the per-turn call budget, then executes the pending tool
// action. The payload is always re-derived from current constraints; the
// model-proposed payload is never trusted.
func (e *Engine) callTool(ctx context.Context, st *model.TurnState) step {
	action := st.PendingAction.CallTool

	if st.ToolCallsThisTurn >= e.guardrails.MaxToolCallsPerTurn {
		observers.FallbackTotal.WithLabelValues(observers.FallbackMaxToolCalls).Inc()
		logx.Warn().
			Str("session_id", st.SessionID).
			Str("tool", action.ToolName).
			Int("used", st.ToolCallsThisTurn).
			Msg("tool call budget exhausted")
		st.PendingAction = model.RespondAction(model.RespondGeneric, "Tool call limit reached for this turn.")
		return stepRespond
	}
	st.ToolCallsThisTurn++

	switch action.ToolName {
	case model.ToolSearchCandidates:
		return e.searchCandidates(ctx, st)
	case model.ToolGetOffers:
		return e.getOffers(ctx, st)
	case model.ToolRankOffers:
		return e.rankOffers(ctx, st)
	}

	// The decode allowlist makes this unreachable; keep a hard stop anyway.
	st.PendingAction = model.RespondAction(model.RespondGeneric, "That tool isn't available.")
	return stepRespond
}

// searchCandidates defines the hotel universe for this trip. Any previously
// cached offers/rankings are invalid once candidates refresh, and the new
// results are pinned to the current constraint fingerprint.
func (e *Engine) searchCandidates(ctx context.Context, st *model.TurnState) step {
	c := st.Constraints
	if !c.IsComplete() {
		st.PendingAction = model.RespondAction(model.RespondClarify, model.ClarifyMessage(c.MissingRequired(), c))
		return stepRespond
	}

	st.Offers = nil
	st.RankedOffers = nil
	st.RankReasons = nil
	st.RecommendedOffers = nil
	st.RecordFingerprint()

	raw, evt, err := e.tools.Call(ctx, model.ToolSearchCandidates, "/tools/search_candidates", c.SearchPayload(e.tenantID))
	st.AppendEvent(evt)
	if err != nil {
		return e.toolFailure(st, model.ToolSearchCandidates, err)
	}

	var res model.SearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return e.toolFailure(st, model.ToolSearchCandidates, err)
	}
	st.Candidates = res.Candidates

	if len(st.Candidates) == 0 {
		// Stop tool looping; let the model propose a constraint change next turn.
		st.PendingAction = model.RespondAction(model.RespondGeneric, "No candidate hotels matched these constraints.")
		return stepRespond
	}
	return stepDecide
}

// getOffers prices the candidate hotels, capped per turn. The same hard
// filters used for candidate search ride along: a hotel can hold both
// refundable and non-refundable inventory, so refundable_only must be
// enforced at pricing too.
func (e *Engine) getOffers(ctx context.Context, st *model.TurnState) step {
	c := st.Constraints

	limit := len(st.Candidates)
	if limit > e.guardrails.MaxHotelsPricedPerTurn {
		limit = e.guardrails.MaxHotelsPricedPerTurn
	}
	hotelIDs := make([]string, 0, limit)
	for _, h := range st.Candidates[:limit] {
		hotelIDs = append(hotelIDs, h.HotelID)
	}

	if len(hotelIDs) == 0 || c.CheckIn == "" || c.CheckOut == "" {
		st.PendingAction = model.RespondAction(model.RespondClarify, model.ClarifyMessage(c.MissingRequired(), c))
		return stepRespond
	}

	raw, evt, err := e.tools.Call(ctx, model.ToolGetOffers, "/tools/get_offers", c.OffersPayload(e.tenantID, hotelIDs))
	st.AppendEvent(evt)
	if err != nil {
		return e.toolFailure(st, model.ToolGetOffers, err)
	}

	var res model.OffersResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return e.toolFailure(st, model.ToolGetOffers, err)
	}
	st.Offers = res.Offers

	if len(st.Offers) == 0 {
		// Nothing to rank; end the turn instead of re-pricing until the budget runs out.
		st.PendingAction = model.RespondAction(model.RespondGeneric, "No offers available to rank.")
		return stepRespond
	}
	return stepDecide
}

// rankOffers ranks the priced offers and deterministically ends the tool
// loop: once ranked, the turn responds with the top offers.
func (e *Engine) rankOffers(ctx context.Context, st *model.TurnState) step {
	if len(st.Offers) == 0 {
		st.PendingAction = model.RespondAction(model.RespondGeneric, "No offers available to rank.")
		return stepRespond
	}

	raw, evt, err := e.tools.Call(ctx, model.ToolRankOffers, "/tools/rank_offers", model.RankPayload(st.Offers, st.Constraints.MaxPrice))
	st.AppendEvent(evt)
	if err != nil {
		return e.toolFailure(st, model.ToolRankOffers, err)
	}

	var res model.RankResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return e.toolFailure(st, model.ToolRankOffers, err)
	}
	st.RankedOffers = res.RankedOffers
	st.RankReasons = res.Reasons

	st.PendingAction = model.RespondAction(model.RespondExplain, "Show top offers.")
	return stepRespond
}

// toolFailure ends the turn with a fixed message. The raw error stays in the
// logs; user-visible text never carries it.
func (e *Engine) toolFailure(st *model.TurnState, tool string, err error) step {
	logx.Error().Str("session_id", st.SessionID).Str("tool", tool).Err(err).Msg("tool call failed")
	st.PendingAction = model.RespondAction(model.RespondGeneric,
		"The hotel data service is unavailable right now. Please try again in a moment.")
	return stepRespond
}
