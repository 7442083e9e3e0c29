package model

import "fmt"

// Response kinds for AgentActionRespond.
const (
	RespondClarify = "clarify"
	RespondExplain = "explain"
	RespondConfirm = "confirm"
	RespondGeneric = "generic"
)

// AgentActionCallTool requests one tool execution. The payload field is kept
// for transparency only; the engine always re-derives the real payload from
// current constraints.
type AgentActionCallTool struct {
	Type              string             `json:"type"`
	ToolName          string             `json:"tool_name"`
	Payload           map[string]any     `json:"payload,omitempty"`
	OfferID           string             `json:"offer_id,omitempty"`
	ConstraintsUpdate *ConstraintsUpdate `json:"constraints_update,omitempty"`
}

// Validate checks the tool name against the strict allowlist.
func (a *AgentActionCallTool) Validate() error {
	switch a.ToolName {
	case ToolSearchCandidates, ToolGetOffers, ToolRankOffers:
	default:
		return fmt.Errorf("tool_name not allowed: %q", a.ToolName)
	}
	return a.ConstraintsUpdate.Validate()
}

// AgentActionRespond requests a user-facing response of the given kind.
type AgentActionRespond struct {
	Type                string             `json:"type"`
	Kind                string             `json:"kind,omitempty"`
	Message             string             `json:"message,omitempty"`
	ConstraintsUpdate   *ConstraintsUpdate `json:"constraints_update,omitempty"`
	RecommendedOfferIDs []string           `json:"recommended_offer_ids,omitempty"`
}

// Validate normalizes an absent kind to generic and rejects unknown kinds.
func (a *AgentActionRespond) Validate() error {
	if a.Kind == "" {
		a.Kind = RespondGeneric
	}
	switch a.Kind {
	case RespondClarify, RespondExplain, RespondConfirm, RespondGeneric:
	default:
		return fmt.Errorf("respond kind not allowed: %q", a.Kind)
	}
	return a.ConstraintsUpdate.Validate()
}

// AgentAction is the decision result: exactly one variant is set.
type AgentAction struct {
	CallTool *AgentActionCallTool
	Respond  *AgentActionRespond
}

// CallToolAction builds a pipeline-forced tool action.
func CallToolAction(toolName string) *AgentAction {
	return &AgentAction{CallTool: &AgentActionCallTool{Type: "call_tool", ToolName: toolName}}
}

// RespondAction builds a response action with a hint message.
func RespondAction(kind, message string) *AgentAction {
	return &AgentAction{Respond: &AgentActionRespond{Type: "respond", Kind: kind, Message: message}}
}

// ================ Resolver contracts ================

// ExtractResult is the bulk slot-extraction output. offer_id carries a user
// selection when present; the empty string is normalized to absent upstream.
type ExtractResult struct {
	ConstraintsUpdate *ConstraintsUpdate `json:"constraints_update,omitempty"`
	OfferID           string             `json:"offer_id,omitempty"`
}

func (r *ExtractResult) Validate() error {
	return r.ConstraintsUpdate.Validate()
}

// DateResolve either provides both dates or flags clarification.
type DateResolve struct {
	CheckIn            string `json:"check_in,omitempty"`
	CheckOut           string `json:"check_out,omitempty"`
	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	Question           string `json:"question,omitempty"`
}

func (r *DateResolve) Validate() error {
	u := &ConstraintsUpdate{}
	if r.CheckIn != "" {
		u.CheckIn = &r.CheckIn
	}
	if r.CheckOut != "" {
		u.CheckOut = &r.CheckOut
	}
	return u.Validate()
}

type CityResolve struct {
	City               string `json:"city,omitempty"`
	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	Question           string `json:"question,omitempty"`
}

type OccupancyResolve struct {
	Adults             *int   `json:"adults,omitempty"`
	Children           *int   `json:"children,omitempty"`
	Rooms              *int   `json:"rooms,omitempty"`
	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	Question           string `json:"question,omitempty"`
}

func (r *OccupancyResolve) Validate() error {
	u := &ConstraintsUpdate{Adults: r.Adults, Children: r.Children, Rooms: r.Rooms}
	return u.Validate()
}

type AmenitiesResolve struct {
	Amenities           []string `json:"amenities,omitempty"`
	RefundablePreferred *bool    `json:"refundable_preferred,omitempty"`
	NeedsClarification  bool     `json:"needs_clarification,omitempty"`
	Question            string   `json:"question,omitempty"`
}

type BudgetResolve struct {
	MaxPrice *float64 `json:"max_price"`
}

func (r *BudgetResolve) Validate() error {
	if r.MaxPrice != nil && *r.MaxPrice <= 0 {
		return fmt.Errorf("max_price must be positive: %v", *r.MaxPrice)
	}
	return nil
}

// HardFilterSet carries replacement values for optional hard filters.
type HardFilterSet struct {
	MaxPrice            *float64 `json:"max_price,omitempty"`
	MinStar             *float64 `json:"min_star,omitempty"`
	Amenities           []string `json:"amenities,omitempty"`
	RefundablePreferred *bool    `json:"refundable_preferred,omitempty"`
}

// HardFilterPatch sets and/or explicitly clears optional hard filters.
type HardFilterPatch struct {
	Set   *HardFilterSet `json:"set,omitempty"`
	Clear []string       `json:"clear,omitempty"`
}

// Validate checks value ranges and the clear-key allowlist.
func (p *HardFilterPatch) Validate() error {
	for _, k := range p.Clear {
		switch k {
		case "max_price", "min_star", "amenities", "refundable_preferred":
		default:
			return fmt.Errorf("clear key not allowed: %q", k)
		}
	}
	if p.Set == nil {
		return nil
	}
	u := &ConstraintsUpdate{
		MaxPrice:            p.Set.MaxPrice,
		MinStar:             p.Set.MinStar,
		Amenities:           p.Set.Amenities,
		RefundablePreferred: p.Set.RefundablePreferred,
	}
	return u.Validate()
}
