package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/stayfinder/agent/internal/agent/grounding"
	"github.com/stayfinder/agent/internal/agent/model"
)

const displayTopN = 3

// buildOfferCards decorates the top ranked offers with their hotel fields and
// collects the grounding allow-sets (every price component and timestamp the
// response may mention). A defensive min-star filter keeps below-threshold
// hotels out of the display even if stale cache data slips through.
func buildOfferCards(st *model.TurnState) ([]model.OfferCard, []float64, []time.Time) {
	byHotel := make(map[string]model.Candidate, len(st.Candidates))
	for _, h := range st.Candidates {
		byHotel[h.HotelID] = h
	}

	ranked := st.RankedOffers
	if ms := st.Constraints.MinStar; ms != nil {
		filtered := make([]model.RankedOffer, 0, len(ranked))
		for _, item := range ranked {
			h, ok := byHotel[item.Offer.HotelID]
			if ok && h.StarRating != nil && *h.StarRating >= *ms {
				filtered = append(filtered, item)
			}
		}
		ranked = filtered
	}
	if len(ranked) > displayTopN {
		ranked = ranked[:displayTopN]
	}

	cards := make([]model.OfferCard, 0, len(ranked))
	var prices []float64
	var timestamps []time.Time
	for _, item := range ranked {
		cards = append(cards, decorateOffer(item.Offer, byHotel))
		prices = append(prices, item.Offer.TotalPrice, item.Offer.TaxesTotal, item.Offer.FeesTotal)
		for _, s := range []string{item.Offer.LastPricedTS, item.Offer.ExpiresTS, item.Offer.CancellationDeadline} {
			if s == "" {
				continue
			}
			if t, err := grounding.ParseTimestamp(s); err == nil {
				timestamps = append(timestamps, t)
			}
		}
	}
	return cards, prices, timestamps
}

// allowSets collects every price component and timestamp present on the
// given cards. Generated text may only mention values from these sets.
func allowSets(cards []model.OfferCard) ([]float64, []time.Time) {
	var prices []float64
	var timestamps []time.Time
	for _, card := range cards {
		prices = append(prices, card.TotalPrice, card.TaxesTotal, card.FeesTotal)
		for _, s := range []string{card.LastPricedTS, card.ExpiresTS, card.CancellationDeadline} {
			if s == "" {
				continue
			}
			if t, err := grounding.ParseTimestamp(s); err == nil {
				timestamps = append(timestamps, t)
			}
		}
	}
	return prices, timestamps
}

func decorateOffer(offer model.Offer, byHotel map[string]model.Candidate) model.OfferCard {
	card := model.OfferCard{Offer: offer, HotelName: "Unknown hotel"}
	h, ok := byHotel[offer.HotelID]
	if !ok {
		return card
	}
	if h.Name != "" {
		card.HotelName = h.Name
	}
	card.City = h.City
	card.Neighborhood = h.Neighborhood
	lat, lon := h.Latitude, h.Longitude
	card.Latitude = &lat
	card.Longitude = &lon
	card.StarRating = h.StarRating
	return card
}

// findSelectedOffer locates a selected offer strictly from tool-provided
// session data: recommended cards first (already decorated and shown to the
// user), then the raw offer list decorated on the fly.
func findSelectedOffer(st *model.TurnState) *model.OfferCard {
	id := st.SelectedOfferID
	if id == "" {
		return nil
	}

	for i := range st.RecommendedOffers {
		if st.RecommendedOffers[i].OfferID == id {
			return &st.RecommendedOffers[i]
		}
	}

	for _, o := range st.Offers {
		if o.OfferID == id {
			byHotel := make(map[string]model.Candidate, len(st.Candidates))
			for _, h := range st.Candidates {
				byHotel[h.HotelID] = h
			}
			card := decorateOffer(o, byHotel)
			return &card
		}
	}
	return nil
}

// formatOfferCard is the tool-only card renderer: every field comes verbatim
// from tool data, prices in canonical 2dp form.
func formatOfferCard(card model.OfferCard) string {
	star := ""
	if card.StarRating != nil {
		star = fmt.Sprintf("%g", *card.StarRating)
	}
	return strings.Join([]string{
		fmt.Sprintf("- offer_id: %s", card.OfferID),
		fmt.Sprintf("  hotel_id: %s", card.HotelID),
		fmt.Sprintf("  hotel: %s", card.HotelName),
		fmt.Sprintf("  star_rating: %s", star),
		fmt.Sprintf("  total_price: $%.2f", card.TotalPrice),
		fmt.Sprintf("  taxes_total: $%.2f", card.TaxesTotal),
		fmt.Sprintf("  fees_total: $%.2f", card.FeesTotal),
		fmt.Sprintf("  refundable: %t", card.Refundable),
		fmt.Sprintf("  cancellation_deadline: %s", card.CancellationDeadline),
		fmt.Sprintf("  inventory_status: %s", card.InventoryStatus),
		fmt.Sprintf("  last_priced_ts: %s", card.LastPricedTS),
		fmt.Sprintf("  expires_ts: %s", card.ExpiresTS),
		fmt.Sprintf("  room_type: %s", card.RoomType),
		fmt.Sprintf("  bed_config: %s", card.BedConfig),
		fmt.Sprintf("  rate_plan: %s", card.RatePlan),
	}, "\n")
}

// renderTopOffers keeps the top-offers display identical every time
// regardless of model phrasing, closing with the fixed selection instruction.
func renderTopOffers(c model.Constraints, cards []model.OfferCard) string {
	city := c.City
	if city == "" {
		city = "(city unknown)"
	}
	ci := c.CheckIn
	if ci == "" {
		ci = "(check_in unknown)"
	}
	co := c.CheckOut
	if co == "" {
		co = "(check_out unknown)"
	}

	var occ []string
	if c.Adults > 0 {
		occ = append(occ, pluralize(c.Adults, "adult"))
	}
	if c.Rooms > 0 {
		occ = append(occ, pluralize(c.Rooms, "room"))
	}
	occS := ""
	if len(occ) > 0 {
		occS = " • " + strings.Join(occ, ", ")
	}
	starS := ""
	if c.MinStar != nil {
		starS = fmt.Sprintf(" (min %g-star)", *c.MinStar)
	}

	header := fmt.Sprintf("Top 3 offers (tool-provided) for %s%s • %s to %s%s:", city, starS, ci, co, occS)

	blocks := make([]string, 0, displayTopN)
	for i, card := range cards {
		if i == displayTopN {
			break
		}
		blocks = append(blocks, fmt.Sprintf("%d)\n%s", i+1, formatOfferCard(card)))
	}
	body := "(no offers)"
	if len(blocks) > 0 {
		body = strings.Join(blocks, "\n\n")
	}
	return header + "\n\n" + body + "\n\nSelect by replying with the offer_id."
}

func renderSelectedOffer(c model.Constraints, card model.OfferCard) string {
	city := c.City
	if city == "" {
		city = "(city unknown)"
	}
	ci := c.CheckIn
	if ci == "" {
		ci = "(check_in unknown)"
	}
	co := c.CheckOut
	if co == "" {
		co = "(check_out unknown)"
	}
	return fmt.Sprintf("Selected offer (tool-provided) for %s • %s to %s:\n\n", city, ci, co) +
		formatOfferCard(card) +
		"\n\nReply with a different offer_id to choose another option."
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
