package resolvers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/llm"
	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/parsers"
	"github.com/stayfinder/agent/internal/agent/prompts"
)

// SupportedAmenities is the tool-side amenity allowlist, sorted for stable
// prompt context.
var SupportedAmenities = []string{
	"airport_shuttle",
	"bar",
	"breakfast_included",
	"gym",
	"parking",
	"pet_friendly",
	"pool",
	"restaurant",
	"spa",
	"wifi",
}

func amenitySupported(a string) bool {
	for _, s := range SupportedAmenities {
		if s == a {
			return true
		}
	}
	return false
}

const (
	resolveAttempts = 3
	recentTurnLimit = 6
)

// Clarification is a blocking question that ends the turn.
type Clarification struct {
	Question string
}

// Result is the pipeline outcome. OfferID carries a user selection extracted
// from the message; Clarification, when set, terminates the turn.
type Result struct {
	Clarification *Clarification
	OfferID       string
}

// Pipeline runs the ordered constraint resolution stages against the
// resolution model. Stages are fail-soft: after retry exhaustion constraints
// stay unchanged and the turn proceeds, except for the blocking stages which
// flag a clarification.
type Pipeline struct {
	gen llm.Generator
	now func() time.Time
}

func NewPipeline(gen llm.Generator) *Pipeline {
	return &Pipeline{gen: gen, now: time.Now}
}

func (p *Pipeline) stateJSON(st *model.TurnState, withAmenities bool) string {
	recent := st.RecentTurns
	if len(recent) > recentTurnLimit {
		recent = recent[len(recent)-recentTurnLimit:]
	}
	doc := map[string]any{
		"today_utc":    p.now().UTC().Format(model.DateISO),
		"constraints":  st.Constraints,
		"recent_turns": recent,
	}
	if withAmenities {
		doc["tool_supported_amenities"] = SupportedAmenities
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// invoke runs one resolver stage with bounded retries. apply decodes and
// applies a candidate JSON object; any error there counts as a failed attempt
// and the amendment is appended to the next prompt.
func (p *Pipeline) invoke(ctx context.Context, stage, system, prompt, amendment string, apply func(obj string) error) {
	user := prompt
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		out, err := p.gen.Generate(ctx, []*schema.Message{
			schema.SystemMessage(system),
			schema.UserMessage(user),
		})
		if err == nil {
			var obj string
			obj, err = parsers.FirstJSONObject(out.Content)
			if err == nil {
				if err = apply(obj); err == nil {
					return
				}
			}
		}
		logx.Info().Str("stage", stage).Int("attempt", attempt).Err(err).Msg("resolver stage failed")
		user = prompt + amendment
	}
}

// Run executes the resolution stages in fixed order: extract, dates, city,
// occupancy, amenities, budget, hard-filter patch. It only runs at the start
// of a user turn; once tools have executed, re-resolving would drift
// constraints and thrash the tool cache.
func (p *Pipeline) Run(ctx context.Context, st *model.TurnState) Result {
	var res Result
	if st.ToolCallsThisTurn != 0 {
		return res
	}

	p.extract(ctx, st, &res)

	if missingDates(st.Constraints) {
		p.resolveDates(ctx, st, &res)
		if res.Clarification != nil {
			return res
		}
	}

	if st.Constraints.City == "" {
		p.resolveCity(ctx, st, &res)
		if res.Clarification != nil {
			return res
		}
	}

	if st.Constraints.Adults == 0 || st.Constraints.Rooms == 0 {
		p.resolveOccupancy(ctx, st, &res)
		if res.Clarification != nil {
			return res
		}
	}

	if p.needsAmenityResolve(st) {
		p.resolveAmenities(ctx, st)
	}

	if st.Constraints.MaxPrice == nil {
		p.resolveBudget(ctx, st)
	}

	p.resolveHardFilters(ctx, st)

	return res
}

func missingDates(c model.Constraints) bool {
	return c.CheckIn == "" || c.CheckOut == ""
}

func (p *Pipeline) extract(ctx context.Context, st *model.TurnState, res *Result) {
	prompt := prompts.Extract(st.UserMessage, p.stateJSON(st, false))
	p.invoke(ctx, "extract", prompts.ExtractSystemPrompt, prompt, prompts.ExtractRetryReminder, func(obj string) error {
		var ext model.ExtractResult
		if err := parsers.DecodeStrict(obj, &ext); err != nil {
			return err
		}
		if err := ext.Validate(); err != nil {
			return err
		}
		// Some models emit offer_id:"" when nothing was selected; the empty
		// string already decodes as absent, so only non-empty ids are checked.
		if ext.OfferID != "" {
			if _, err := uuid.Parse(ext.OfferID); err != nil {
				return fmt.Errorf("offer_id: %w", err)
			}
		}
		st.Constraints = st.Constraints.Merge(ext.ConstraintsUpdate)
		res.OfferID = ext.OfferID
		logx.Info().Str("offer_id", ext.OfferID).Msg("slot extraction ok")
		return nil
	})
}

func (p *Pipeline) resolveDates(ctx context.Context, st *model.TurnState, res *Result) {
	prompt := prompts.DateResolve(st.UserMessage, p.stateJSON(st, false))
	p.invoke(ctx, "date", prompts.DateResolveSystemPrompt, prompt, prompts.JSONOnlyReminder, func(obj string) error {
		var dr model.DateResolve
		if err := parsers.DecodeStrict(obj, &dr); err != nil {
			return err
		}
		if err := dr.Validate(); err != nil {
			return err
		}
		if dr.NeedsClarification {
			q := strings.TrimSpace(dr.Question)
			if q == "" {
				q = "What dates should I use? (YYYY-MM-DD to YYYY-MM-DD)"
			}
			res.Clarification = &Clarification{Question: q}
			return nil
		}
		if dr.CheckIn != "" && dr.CheckOut != "" {
			st.Constraints = st.Constraints.Merge(&model.ConstraintsUpdate{CheckIn: &dr.CheckIn, CheckOut: &dr.CheckOut})
		}
		return nil
	})
}

func (p *Pipeline) resolveCity(ctx context.Context, st *model.TurnState, res *Result) {
	prompt := prompts.CityResolve(st.UserMessage, p.stateJSON(st, true))
	p.invoke(ctx, "city", prompts.CityResolveSystemPrompt, prompt, prompts.JSONOnlyReminder, func(obj string) error {
		var cr model.CityResolve
		if err := parsers.DecodeStrict(obj, &cr); err != nil {
			return err
		}
		if cr.NeedsClarification {
			// City questions stay deterministic (avoid "Which Austin...").
			res.Clarification = &Clarification{Question: model.ClarifyMessage([]string{"city"}, st.Constraints)}
			return nil
		}
		if cr.City != "" {
			st.Constraints = st.Constraints.Merge(&model.ConstraintsUpdate{City: &cr.City})
		}
		return nil
	})
}

func (p *Pipeline) resolveOccupancy(ctx context.Context, st *model.TurnState, res *Result) {
	prompt := prompts.OccupancyResolve(st.UserMessage, p.stateJSON(st, true))
	p.invoke(ctx, "occupancy", prompts.OccupancyResolveSystemPrompt, prompt, prompts.JSONOnlyReminder, func(obj string) error {
		var or model.OccupancyResolve
		if err := parsers.DecodeStrict(obj, &or); err != nil {
			return err
		}
		if err := or.Validate(); err != nil {
			return err
		}
		if or.NeedsClarification {
			// Deterministic question so "rooms" is always mentioned when needed.
			var missing []string
			if st.Constraints.Adults == 0 {
				missing = append(missing, "adults")
			}
			if st.Constraints.Rooms == 0 {
				missing = append(missing, "rooms")
			}
			res.Clarification = &Clarification{Question: model.ClarifyMessage(missing, st.Constraints)}
			return nil
		}
		st.Constraints = st.Constraints.Merge(&model.ConstraintsUpdate{Adults: or.Adults, Children: or.Children, Rooms: or.Rooms})
		return nil
	})
}

// needsAmenityResolve triggers on amenities outside the allowlist, or on a
// refinement turn (tool cache exists) where the refundable preference is
// still unknown.
func (p *Pipeline) needsAmenityResolve(st *model.TurnState) bool {
	for _, a := range st.Constraints.Amenities {
		if !amenitySupported(a) {
			return true
		}
	}
	return st.Constraints.RefundablePreferred == nil && st.HasToolCache()
}

func (p *Pipeline) resolveAmenities(ctx context.Context, st *model.TurnState) {
	prompt := prompts.AmenitiesResolve(st.UserMessage, p.stateJSON(st, true))
	p.invoke(ctx, "amenities", prompts.AmenitiesResolveSystemPrompt, prompt, prompts.JSONOnlyReminder, func(obj string) error {
		var ar model.AmenitiesResolve
		if err := parsers.DecodeStrict(obj, &ar); err != nil {
			return err
		}
		if ar.NeedsClarification {
			// Amenities are optional; never block the tool pipeline on them.
			logx.Info().Str("question", ar.Question).Msg("amenity resolver question ignored")
			return nil
		}
		st.Constraints = st.Constraints.Merge(&model.ConstraintsUpdate{Amenities: ar.Amenities, RefundablePreferred: ar.RefundablePreferred})
		return nil
	})
}

func (p *Pipeline) resolveBudget(ctx context.Context, st *model.TurnState) {
	prompt := prompts.BudgetResolve(st.UserMessage, p.stateJSON(st, false))
	p.invoke(ctx, "budget", prompts.BudgetResolveSystemPrompt, prompt, prompts.JSONOnlyReminder, func(obj string) error {
		var br model.BudgetResolve
		if err := parsers.DecodeStrict(obj, &br); err != nil {
			return err
		}
		if err := br.Validate(); err != nil {
			return err
		}
		// max_price:null leaves the budget unset.
		if br.MaxPrice != nil {
			st.Constraints = st.Constraints.Merge(&model.ConstraintsUpdate{MaxPrice: br.MaxPrice})
		}
		return nil
	})
}

func (p *Pipeline) resolveHardFilters(ctx context.Context, st *model.TurnState) {
	prompt := prompts.HardFiltersResolve(st.UserMessage, p.stateJSON(st, true))
	p.invoke(ctx, "hard_filters", prompts.HardFiltersResolveSystemPrompt, prompt, prompts.JSONOnlyReminder, func(obj string) error {
		var patch model.HardFilterPatch
		if err := parsers.DecodeStrict(obj, &patch); err != nil {
			return err
		}
		if err := patch.Validate(); err != nil {
			return err
		}
		if len(patch.Clear) > 0 {
			st.Constraints = st.Constraints.ClearFilters(patch.Clear)
		}
		if patch.Set != nil {
			st.Constraints = st.Constraints.Merge(&model.ConstraintsUpdate{
				MaxPrice:            patch.Set.MaxPrice,
				MinStar:             patch.Set.MinStar,
				Amenities:           patch.Set.Amenities,
				RefundablePreferred: patch.Set.RefundablePreferred,
			})
		}
		return nil
	})
}
