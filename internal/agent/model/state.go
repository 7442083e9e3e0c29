package model

import "time"

// Stable external agent states reported to the caller after each turn.
const (
	StateCollectConstraints = "COLLECT_CONSTRAINTS"
	StateWaitForSelection   = "WAIT_FOR_SELECTION"
	StateConfirm            = "CONFIRM"
	StateRespond            = "RESPOND"
)

// TurnRecord is one completed turn, appended to the bounded session history.
type TurnRecord struct {
	TS               time.Time   `json:"ts"`
	UserMessage      string      `json:"user_message"`
	AssistantMessage string      `json:"assistant_message"`
	AgentState       string      `json:"agent_state"`
	ToolEvents       []ToolEvent `json:"tool_events,omitempty"`
	SelectedOfferID  string      `json:"selected_offer_id,omitempty"`
}

// SessionSnapshot is the durable cross-turn state. Fingerprint is a pointer:
// nil marks a legacy snapshot written before fingerprints existed, which the
// engine treats as stale tool cache.
type SessionSnapshot struct {
	AgentState          string        `json:"agent_state,omitempty"`
	Constraints         Constraints   `json:"constraints"`
	Candidates          []Candidate   `json:"candidates,omitempty"`
	Offers              []Offer       `json:"offers,omitempty"`
	RankedOffers        []RankedOffer `json:"ranked_offers,omitempty"`
	RankReasons         []RankReason  `json:"reasons,omitempty"`
	RecommendedOffers   []OfferCard   `json:"recommended_offers,omitempty"`
	Fingerprint         *string       `json:"tool_constraints_key"`
	LastSelectedOfferID string        `json:"last_selected_offer_id,omitempty"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// TurnState is the working state of a single turn. It starts from the session
// snapshot, is mutated by the decision loop, and is folded back into a
// snapshot afterwards.
type TurnState struct {
	SessionID   string
	UserMessage string
	Constraints Constraints

	// Per-turn control flow.
	ToolCallsThisTurn int
	Events            []ToolEvent
	PendingAction     *AgentAction
	SelectedOfferID   string

	// Tool result cache (cross-turn, fingerprint-guarded).
	Candidates        []Candidate
	Offers            []Offer
	RankedOffers      []RankedOffer
	RankReasons       []RankReason
	RecommendedOffers []OfferCard

	// Fingerprint of the constraints the cached tool data corresponds to.
	// HasFingerprint distinguishes an empty value from a legacy snapshot
	// that never persisted one.
	Fingerprint    string
	HasFingerprint bool

	LastSelectedOfferID string

	// Outputs.
	AssistantMessage string
	AgentState       string

	// Bounded recent history for resolver context.
	RecentTurns []TurnRecord
}

// NewTurnState builds the working state for one turn from the persisted
// snapshot (nil for a fresh session). Per-turn fields start zeroed, which is
// the counterpart of the per-turn reset in the original session handling.
func NewTurnState(sessionID, userMessage string, snap *SessionSnapshot, recent []TurnRecord) *TurnState {
	st := &TurnState{
		SessionID:   sessionID,
		UserMessage: userMessage,
		RecentTurns: recent,
	}
	if snap == nil {
		return st
	}
	st.Constraints = snap.Constraints
	st.Candidates = snap.Candidates
	st.Offers = snap.Offers
	st.RankedOffers = snap.RankedOffers
	st.RankReasons = snap.RankReasons
	st.RecommendedOffers = snap.RecommendedOffers
	st.LastSelectedOfferID = snap.LastSelectedOfferID
	if snap.Fingerprint != nil {
		st.Fingerprint = *snap.Fingerprint
		st.HasFingerprint = true
	}
	return st
}

// Snapshot folds the turn result back into the durable session state.
func (s *TurnState) Snapshot() *SessionSnapshot {
	snap := &SessionSnapshot{
		AgentState:          s.AgentState,
		Constraints:         s.Constraints,
		Candidates:          s.Candidates,
		Offers:              s.Offers,
		RankedOffers:        s.RankedOffers,
		RankReasons:         s.RankReasons,
		RecommendedOffers:   s.RecommendedOffers,
		LastSelectedOfferID: s.LastSelectedOfferID,
		UpdatedAt:           time.Now().UTC(),
	}
	if s.HasFingerprint {
		fp := s.Fingerprint
		snap.Fingerprint = &fp
	}
	return snap
}

// Record builds the history entry for this completed turn.
func (s *TurnState) Record() TurnRecord {
	return TurnRecord{
		TS:               time.Now().UTC(),
		UserMessage:      s.UserMessage,
		AssistantMessage: s.AssistantMessage,
		AgentState:       s.AgentState,
		ToolEvents:       s.Events,
		SelectedOfferID:  s.LastSelectedOfferID,
	}
}

// AppendEvent adds a tool call record to the turn timeline.
func (s *TurnState) AppendEvent(evt ToolEvent) {
	s.Events = append(s.Events, evt)
}

// HasToolCache reports whether any tool results are cached.
func (s *TurnState) HasToolCache() bool {
	return len(s.Candidates) > 0 || len(s.Offers) > 0 || len(s.RankedOffers) > 0 || len(s.RecommendedOffers) > 0
}

// HasOfferContext reports whether a user-provided offer id can be resolved
// against tool-provided data from this session.
func (s *TurnState) HasOfferContext() bool {
	return len(s.RecommendedOffers) > 0 || len(s.RankedOffers) > 0 || len(s.Offers) > 0
}

// InvalidateToolCache drops every cached tool result along with the
// fingerprint that guarded it.
func (s *TurnState) InvalidateToolCache() {
	s.Candidates = nil
	s.Offers = nil
	s.RankedOffers = nil
	s.RankReasons = nil
	s.RecommendedOffers = nil
	s.Fingerprint = ""
	s.HasFingerprint = true
}

// RecordFingerprint pins the cached tool data to the current constraints.
func (s *TurnState) RecordFingerprint() {
	s.Fingerprint = s.Constraints.Fingerprint()
	s.HasFingerprint = true
}
