package model

import "encoding/json"

// Allowed tool names (strict allowlist).
const (
	ToolSearchCandidates = "search_candidates"
	ToolGetOffers        = "get_offers"
	ToolRankOffers       = "rank_offers"
)

// Candidate is a hotel returned by candidate search.
type Candidate struct {
	HotelID      string   `json:"hotel_id"`
	Name         string   `json:"name"`
	City         string   `json:"city,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	StarRating   *float64 `json:"star_rating,omitempty"`
	ReviewScore  *float64 `json:"review_score,omitempty"`
}

// Offer is a priced room offer. Timestamp fields stay as the tool-provided
// ISO strings: user-visible output must copy them verbatim, so they are only
// parsed when building grounding allow-sets.
type Offer struct {
	OfferID              string  `json:"offer_id"`
	HotelID              string  `json:"hotel_id"`
	TotalPrice           float64 `json:"total_price"`
	TaxesTotal           float64 `json:"taxes_total"`
	FeesTotal            float64 `json:"fees_total"`
	Refundable           bool    `json:"refundable"`
	CancellationDeadline string  `json:"cancellation_deadline,omitempty"`
	InventoryStatus      string  `json:"inventory_status"`
	LastPricedTS         string  `json:"last_priced_ts"`
	ExpiresTS            string  `json:"expires_ts"`
	RoomType             string  `json:"room_type"`
	BedConfig            string  `json:"bed_config,omitempty"`
	RatePlan             string  `json:"rate_plan"`
}

// RankedOffer pairs an offer with its ranking score.
type RankedOffer struct {
	Offer Offer   `json:"offer"`
	Score float64 `json:"score"`
}

// RankReason carries the human-readable scoring factors per offer.
type RankReason struct {
	OfferID string   `json:"offer_id"`
	Reasons []string `json:"reasons"`
}

// OfferCard is an offer decorated with its hotel fields for display and for
// grounding allow-set construction.
type OfferCard struct {
	Offer
	HotelName    string   `json:"hotel_name"`
	City         string   `json:"city,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	StarRating   *float64 `json:"star_rating,omitempty"`
}

// Tool response bodies.
type SearchResult struct {
	Candidates []Candidate    `json:"candidates"`
	Counts     map[string]int `json:"counts,omitempty"`
}

type OffersResult struct {
	Offers []Offer `json:"offers"`
}

type RankResult struct {
	RankedOffers []RankedOffer `json:"ranked_offers"`
	Reasons      []RankReason  `json:"reasons"`
}

// ToolEvent is the structured record of one tool call, kept on the turn
// timeline for observability and response context.
type ToolEvent struct {
	ToolName      string          `json:"tool_name"`
	Path          string          `json:"path"`
	Status        string          `json:"status"`
	LatencyMS     int64           `json:"latency_ms"`
	Retries       int             `json:"retries"`
	ResultCounts  map[string]int  `json:"result_counts,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ResultPreview json.RawMessage `json:"result_preview,omitempty"`
}

// Tool event statuses.
const (
	ToolStatusOK    = "OK"
	ToolStatusError = "ERROR"
)
