package grounding

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RE2 has no lookbehind, so the money pattern carries a leading boundary
// group instead of (?<!\w); the amount itself is still capture group 1.
var (
	moneyRE = regexp.MustCompile(`(?:^|[^0-9A-Za-z_])\$([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`)
	isoTSRE = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))\b`)
)

// Violation is returned when generated text mentions a monetary value or
// timestamp that no tool provided.
type Violation struct {
	Kind  string
	Token string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("ungrounded %s %s", v.Kind, v.Token)
}

// ParseTimestamp parses a tool-provided ISO-8601 timestamp, accepting the
// "Z" suffix as equivalent to "+00:00".
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.Replace(s, "+00:00", "Z", 1))
}

// Validate scans assistant text for currency and ISO timestamp tokens and
// requires every one of them to appear in the allow-sets. Prices compare in
// canonical 2dp form after stripping thousands separators, so "$1,234.56"
// matches 1234.56. Timestamps compare as strings with "Z" and "+00:00"
// treated as the same zone. Strictness is the point: the generator must copy
// tool values verbatim or not mention them at all.
func Validate(text string, allowedPrices []float64, allowedTimestamps []time.Time) error {
	priceSet := make(map[string]bool, len(allowedPrices))
	for _, p := range allowedPrices {
		priceSet[fmt.Sprintf("%.2f", p)] = true
	}
	for _, m := range moneyRE.FindAllStringSubmatch(text, -1) {
		v := strings.ReplaceAll(m[1], ",", "")
		if !priceSet[v] {
			return &Violation{Kind: "price", Token: "$" + m[1]}
		}
	}

	// Both fractional layouts are needed: .999999 trims trailing zeros while
	// .000000 keeps the fixed six-digit form the tools emit, and responses
	// must be able to copy either spelling verbatim.
	tsSet := map[string]bool{}
	for _, t := range allowedTimestamps {
		for _, layout := range []string{
			"2006-01-02T15:04:05-07:00",
			"2006-01-02T15:04:05.999999-07:00",
			"2006-01-02T15:04:05.000000-07:00",
		} {
			s := t.Format(layout)
			tsSet[s] = true
			if strings.HasSuffix(s, "+00:00") {
				tsSet[strings.TrimSuffix(s, "+00:00")+"Z"] = true
			}
		}
	}
	for _, m := range isoTSRE.FindAllStringSubmatch(text, -1) {
		if !tsSet[m[1]] {
			return &Violation{Kind: "timestamp", Token: m[1]}
		}
	}
	return nil
}
