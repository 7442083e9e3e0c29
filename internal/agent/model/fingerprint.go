package model

import (
	"encoding/json"
	"sort"
)

// ToolRelevantSubset projects the constraint fields that influence tool
// results into a canonical map: amenities sorted and de-duplicated, currency
// defaulted, absent optionals omitted. Fields outside this allowlist never
// affect tool calls or cache identity.
func (c Constraints) ToolRelevantSubset() map[string]any {
	subset := map[string]any{}
	if c.City != "" {
		subset["city"] = c.City
	}
	if c.CheckIn != "" {
		subset["check_in"] = c.CheckIn
	}
	if c.CheckOut != "" {
		subset["check_out"] = c.CheckOut
	}
	if c.Adults > 0 {
		subset["adults"] = c.Adults
	}
	if c.Children != nil {
		subset["children"] = *c.Children
	}
	if c.Rooms > 0 {
		subset["rooms"] = c.Rooms
	}
	if c.MaxPrice != nil {
		subset["max_price"] = *c.MaxPrice
	}
	if c.MinStar != nil {
		subset["min_star"] = *c.MinStar
	}
	if len(c.Amenities) > 0 {
		seen := map[string]bool{}
		amenities := make([]string, 0, len(c.Amenities))
		for _, a := range c.Amenities {
			if !seen[a] {
				seen[a] = true
				amenities = append(amenities, a)
			}
		}
		sort.Strings(amenities)
		subset["amenities"] = amenities
	}
	if c.RefundablePreferred != nil {
		subset["refundable_preferred"] = *c.RefundablePreferred
	}
	subset["currency"] = c.currency()
	return subset
}

// Fingerprint returns a stable cache key over the tool-relevant subset.
// encoding/json serializes map keys in sorted order, which makes the output
// deterministic for equal subsets. The key is compared for equality only and
// never parsed back.
func (c Constraints) Fingerprint() string {
	b, err := json.Marshal(c.ToolRelevantSubset())
	if err != nil {
		// The subset contains only plain scalars and string slices.
		return ""
	}
	return string(b)
}
