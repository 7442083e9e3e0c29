package model

import (
	"fmt"
	"time"
)

// DateISO is the civil date layout used for check-in/check-out fields.
const DateISO = "2006-01-02"

// DefaultCurrency applies whenever the user never stated a currency.
const DefaultCurrency = "USD"

// Constraints is the structured shopping state. All user-input understanding
// is delegated to the resolution models; this package never parses free text.
// Optional scalar fields are pointers so "absent" and "zero" stay distinct.
type Constraints struct {
	City     string `json:"city,omitempty"`
	CheckIn  string `json:"check_in,omitempty"`
	CheckOut string `json:"check_out,omitempty"`
	Adults   int    `json:"adults,omitempty"`
	Children *int   `json:"children,omitempty"`
	Rooms    int    `json:"rooms,omitempty"`
	// Optional hard filters.
	MaxPrice  *float64 `json:"max_price,omitempty"`
	MinStar   *float64 `json:"min_star,omitempty"`
	Amenities []string `json:"amenities,omitempty"`
	// Treated as a hard filter when true (tools enforce refundable_only).
	RefundablePreferred *bool  `json:"refundable_preferred,omitempty"`
	Currency            string `json:"currency,omitempty"`
}

// ConstraintsUpdate is a model-emitted partial update. Every field is a
// pointer: only present fields overwrite, absent fields never clear.
type ConstraintsUpdate struct {
	City                *string  `json:"city,omitempty"`
	CheckIn             *string  `json:"check_in,omitempty"`
	CheckOut            *string  `json:"check_out,omitempty"`
	Adults              *int     `json:"adults,omitempty"`
	Children            *int     `json:"children,omitempty"`
	Rooms               *int     `json:"rooms,omitempty"`
	MaxPrice            *float64 `json:"max_price,omitempty"`
	MinStar             *float64 `json:"min_star,omitempty"`
	Amenities           []string `json:"amenities,omitempty"`
	RefundablePreferred *bool    `json:"refundable_preferred,omitempty"`
	Currency            *string  `json:"currency,omitempty"`
}

// Validate enforces the slot value ranges shared by every resolver contract.
func (u *ConstraintsUpdate) Validate() error {
	if u == nil {
		return nil
	}
	if u.CheckIn != nil {
		if _, err := time.Parse(DateISO, *u.CheckIn); err != nil {
			return fmt.Errorf("check_in: %w", err)
		}
	}
	if u.CheckOut != nil {
		if _, err := time.Parse(DateISO, *u.CheckOut); err != nil {
			return fmt.Errorf("check_out: %w", err)
		}
	}
	if u.Adults != nil && (*u.Adults < 1 || *u.Adults > 10) {
		return fmt.Errorf("adults out of range: %d", *u.Adults)
	}
	if u.Children != nil && (*u.Children < 0 || *u.Children > 10) {
		return fmt.Errorf("children out of range: %d", *u.Children)
	}
	if u.Rooms != nil && (*u.Rooms < 1 || *u.Rooms > 5) {
		return fmt.Errorf("rooms out of range: %d", *u.Rooms)
	}
	if u.MaxPrice != nil && *u.MaxPrice <= 0 {
		return fmt.Errorf("max_price must be positive: %v", *u.MaxPrice)
	}
	if u.MinStar != nil && (*u.MinStar < 1 || *u.MinStar > 5) {
		return fmt.Errorf("min_star out of range: %v", *u.MinStar)
	}
	return nil
}

// Merge applies a partial update over the receiver and returns the result.
// Absent fields are never cleared; use ClearFilters for explicit clearing.
func (c Constraints) Merge(u *ConstraintsUpdate) Constraints {
	out := c
	if u == nil {
		return out
	}
	if u.City != nil {
		out.City = *u.City
	}
	if u.CheckIn != nil {
		out.CheckIn = *u.CheckIn
	}
	if u.CheckOut != nil {
		out.CheckOut = *u.CheckOut
	}
	if u.Adults != nil {
		out.Adults = *u.Adults
	}
	if u.Children != nil {
		v := *u.Children
		out.Children = &v
	}
	if u.Rooms != nil {
		out.Rooms = *u.Rooms
	}
	if u.MaxPrice != nil {
		v := *u.MaxPrice
		out.MaxPrice = &v
	}
	if u.MinStar != nil {
		v := *u.MinStar
		out.MinStar = &v
	}
	if u.Amenities != nil {
		out.Amenities = append([]string(nil), u.Amenities...)
	}
	if u.RefundablePreferred != nil {
		v := *u.RefundablePreferred
		out.RefundablePreferred = &v
	}
	if u.Currency != nil {
		out.Currency = *u.Currency
	}
	return out
}

// ClearFilters removes the named optional hard filters. Required shopping
// fields cannot be cleared through this path.
func (c Constraints) ClearFilters(keys []string) Constraints {
	out := c
	for _, k := range keys {
		switch k {
		case "max_price":
			out.MaxPrice = nil
		case "min_star":
			out.MinStar = nil
		case "amenities":
			out.Amenities = nil
		case "refundable_preferred":
			out.RefundablePreferred = nil
		}
	}
	return out
}

// IsComplete reports whether the required shopping fields are all present.
func (c Constraints) IsComplete() bool {
	return c.City != "" && c.CheckIn != "" && c.CheckOut != "" && c.Adults > 0 && c.Rooms > 0
}

// MissingRequired lists the absent required fields in fixed order.
func (c Constraints) MissingRequired() []string {
	var missing []string
	if c.City == "" {
		missing = append(missing, "city")
	}
	if c.CheckIn == "" || c.CheckOut == "" {
		missing = append(missing, "dates")
	}
	if c.Adults == 0 {
		missing = append(missing, "adults")
	}
	if c.Rooms == 0 {
		missing = append(missing, "rooms")
	}
	return missing
}

func (c Constraints) children() int {
	if c.Children == nil {
		return 0
	}
	return *c.Children
}

func (c Constraints) currency() string {
	if c.Currency == "" {
		return DefaultCurrency
	}
	return c.Currency
}

// HardFilters builds the tools hard_filters payload (or nil). Centralizing
// this avoids subtle drift between candidate search and offer pricing.
func (c Constraints) HardFilters() map[string]any {
	hf := map[string]any{}
	if c.MaxPrice != nil && *c.MaxPrice > 0 {
		hf["max_price"] = *c.MaxPrice
	}
	if c.MinStar != nil && *c.MinStar > 0 {
		hf["min_star"] = *c.MinStar
	}
	if len(c.Amenities) > 0 {
		hf["amenities"] = c.Amenities
	}
	if c.RefundablePreferred != nil && *c.RefundablePreferred {
		hf["refundable_only"] = true
	}
	if len(hf) == 0 {
		return nil
	}
	return hf
}

// SearchPayload builds the candidate search request body. Constraints must be
// complete before calling.
func (c Constraints) SearchPayload(tenantID string) map[string]any {
	return map[string]any{
		"tenant_id": tenantID,
		"location":  map[string]any{"city": c.City},
		"check_in":  c.CheckIn,
		"check_out": c.CheckOut,
		"occupancy": map[string]any{
			"adults":   c.Adults,
			"children": c.children(),
			"rooms":    c.Rooms,
		},
		"hard_filters": c.HardFilters(),
	}
}

// OffersPayload builds the pricing request body for the given hotel ids.
// The same hard filters used for candidate search are passed along; a hotel
// can carry both refundable and non-refundable offers, so refundable_only
// must be enforced at pricing too.
func (c Constraints) OffersPayload(tenantID string, hotelIDs []string) map[string]any {
	payload := map[string]any{
		"tenant_id": tenantID,
		"hotel_ids": hotelIDs,
		"trip": map[string]any{
			"check_in":  c.CheckIn,
			"check_out": c.CheckOut,
			"occupancy": map[string]any{
				"adults":   c.Adults,
				"children": c.children(),
				"rooms":    c.Rooms,
			},
		},
		"currency": c.currency(),
	}
	if hf := c.HardFilters(); hf != nil {
		payload["hard_filters"] = hf
	}
	return payload
}

// RankPayload builds the ranking request body over already-priced offers.
func RankPayload(offers []Offer, maxPrice *float64) map[string]any {
	prefs := map[string]any{}
	if maxPrice != nil {
		prefs["max_price"] = *maxPrice
	}
	return map[string]any{
		"offers":     offers,
		"user_prefs": prefs,
		"objective_weights": map[string]any{
			"price":      0.65,
			"refundable": 0.25,
			"freshness":  0.10,
		},
	}
}
