package model

import "fmt"

// ClarifyMessage renders the fixed clarification question for the given
// missing required fields. Minimal and non-assumptive: 1-2 short questions,
// never model-phrased, so repeated asks stay identical.
func ClarifyMessage(missing []string, c Constraints) string {
	has := func(k string) bool {
		for _, m := range missing {
			if m == k {
				return true
			}
		}
		return false
	}

	if len(missing) == 2 && missing[0] == "adults" && missing[1] == "rooms" &&
		c.City != "" && c.CheckIn != "" && c.CheckOut != "" {
		return fmt.Sprintf("I can search %s for %s to %s. How many adults and rooms?", c.City, c.CheckIn, c.CheckOut)
	}
	if has("dates") && c.City != "" {
		return fmt.Sprintf("What dates should I use for %s? (YYYY-MM-DD to YYYY-MM-DD)", c.City)
	}
	if has("city") && has("dates") {
		return "Which city and dates? (Example: Austin, 2026-03-10 to 2026-03-12)"
	}
	if has("city") {
		return "Which city should I search in?"
	}
	if has("dates") {
		return "What are your check-in and check-out dates? (YYYY-MM-DD to YYYY-MM-DD)"
	}
	if has("adults") && has("rooms") {
		return "How many adults and rooms?"
	}
	if has("adults") {
		return "How many adults?"
	}
	if has("rooms") {
		return "How many rooms?"
	}
	return "What details should I use to continue?"
}
