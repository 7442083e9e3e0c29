package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/toolclient"
)

const (
	offerID1 = "11111111-1111-4111-8111-111111111111"
	offerID2 = "22222222-2222-4222-8222-222222222222"
	offerID3 = "33333333-3333-4333-8333-333333333333"
)

const searchBody = `{"candidates":[
{"hotel_id":"h1","name":"The Driskill","city":"Austin","latitude":30.27,"longitude":-97.74,"star_rating":4.5,"review_score":9.0},
{"hotel_id":"h2","name":"Budget Inn","city":"Austin","latitude":30.20,"longitude":-97.70,"star_rating":3.0,"review_score":7.1},
{"hotel_id":"h3","name":"Hotel Van Zandt","city":"Austin","latitude":30.26,"longitude":-97.73,"star_rating":4.0,"review_score":8.6}
]}`

const offersBody = `{"offers":[
{"offer_id":"` + offerID1 + `","hotel_id":"h1","total_price":432.10,"taxes_total":50.00,"fees_total":10.00,"refundable":true,"cancellation_deadline":"2026-03-08T23:59:00Z","inventory_status":"available","last_priced_ts":"2026-03-01T12:00:00Z","expires_ts":"2026-03-01T18:00:00Z","room_type":"King Room","bed_config":"1 king","rate_plan":"Flexible"},
{"offer_id":"` + offerID2 + `","hotel_id":"h2","total_price":210.00,"taxes_total":24.00,"fees_total":5.00,"refundable":false,"inventory_status":"available","last_priced_ts":"2026-03-01T12:00:00Z","expires_ts":"2026-03-01T18:00:00Z","room_type":"Queen Room","rate_plan":"Saver"},
{"offer_id":"` + offerID3 + `","hotel_id":"h3","total_price":389.50,"taxes_total":44.00,"fees_total":8.00,"refundable":true,"cancellation_deadline":"2026-03-09T23:59:00Z","inventory_status":"low","last_priced_ts":"2026-03-01T12:00:00Z","expires_ts":"2026-03-01T18:00:00Z","room_type":"Studio Suite","bed_config":"1 queen","rate_plan":"Flexible"}
]}`

const rankBody = `{"ranked_offers":[
{"offer":{"offer_id":"` + offerID1 + `","hotel_id":"h1","total_price":432.10,"taxes_total":50.00,"fees_total":10.00,"refundable":true,"cancellation_deadline":"2026-03-08T23:59:00Z","inventory_status":"available","last_priced_ts":"2026-03-01T12:00:00Z","expires_ts":"2026-03-01T18:00:00Z","room_type":"King Room","bed_config":"1 king","rate_plan":"Flexible"},"score":0.90},
{"offer":{"offer_id":"` + offerID3 + `","hotel_id":"h3","total_price":389.50,"taxes_total":44.00,"fees_total":8.00,"refundable":true,"cancellation_deadline":"2026-03-09T23:59:00Z","inventory_status":"low","last_priced_ts":"2026-03-01T12:00:00Z","expires_ts":"2026-03-01T18:00:00Z","room_type":"Studio Suite","bed_config":"1 queen","rate_plan":"Flexible"},"score":0.82},
{"offer":{"offer_id":"` + offerID2 + `","hotel_id":"h2","total_price":210.00,"taxes_total":24.00,"fees_total":5.00,"refundable":false,"inventory_status":"available","last_priced_ts":"2026-03-01T12:00:00Z","expires_ts":"2026-03-01T18:00:00Z","room_type":"Queen Room","rate_plan":"Saver"},"score":0.75}
],"reasons":[{"offer_id":"` + offerID1 + `","reasons":["price","refundable"]}]}`

const fullExtract = `{"constraints_update":{"city":"Austin","check_in":"2026-03-10","check_out":"2026-03-12","adults":2,"rooms":1,"max_price":1200}}`

// scriptedModel returns queued responses per prompt MODE. Modes without a
// script fall back to "{}".
type scriptedModel struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     []string
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	user := input[len(input)-1].Content
	mode := user
	if i := strings.IndexByte(user, '\n'); i >= 0 {
		mode = user[:i]
	}
	mode = strings.TrimPrefix(mode, "MODE:")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mode)
	queue := m.responses[mode]
	if len(queue) == 0 {
		return schema.AssistantMessage("{}", nil), nil
	}
	out := queue[0]
	m.responses[mode] = queue[1:]
	return schema.AssistantMessage(out, nil), nil
}

func (m *scriptedModel) modeCalls(mode string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == mode {
			n++
		}
	}
	return n
}

type toolServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newToolServer(t *testing.T) *toolServer {
	ts := &toolServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/tools/search_candidates", ts.respondWith(searchBody))
	mux.HandleFunc("/tools/get_offers", ts.respondWith(offersBody))
	mux.HandleFunc("/tools/rank_offers", ts.respondWith(rankBody))
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *toolServer) respondWith(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.paths = append(ts.paths, r.URL.Path)
		ts.mu.Unlock()
		w.Write([]byte(body))
	}
}

func (ts *toolServer) calls() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.paths...)
}

func testGuardrails() model.GuardrailConfig {
	return model.GuardrailConfig{
		MaxToolCallsPerTurn:    8,
		MaxHotelsPricedPerTurn: 20,
		MaxWallClockMS:         8000,
		ToolTimeoutMS:          2000,
		ToolMaxRetries:         1,
	}
}

func newTestEngine(dec, resp *scriptedModel, srv *toolServer, g model.GuardrailConfig) *Engine {
	tools := toolclient.New(srv.URL, g.ToolTimeoutMS, g.ToolMaxRetries)
	return New(dec, resp, tools, g, "t_default")
}

func ptr[T any](v T) *T { return &v }

// seededSnapshot is a session that already searched, priced, ranked and
// displayed offers for a complete Austin trip.
func seededSnapshot(t *testing.T) *model.SessionSnapshot {
	t.Helper()

	var search model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(searchBody), &search))
	var offers model.OffersResult
	require.NoError(t, json.Unmarshal([]byte(offersBody), &offers))
	var rank model.RankResult
	require.NoError(t, json.Unmarshal([]byte(rankBody), &rank))

	c := model.Constraints{
		City: "Austin", CheckIn: "2026-03-10", CheckOut: "2026-03-12",
		Adults: 2, Rooms: 1, MaxPrice: ptr(1200.0),
	}
	fp := c.Fingerprint()

	cards := make([]model.OfferCard, 0, len(rank.RankedOffers))
	byHotel := map[string]string{"h1": "The Driskill", "h2": "Budget Inn", "h3": "Hotel Van Zandt"}
	for _, item := range rank.RankedOffers {
		cards = append(cards, model.OfferCard{Offer: item.Offer, HotelName: byHotel[item.Offer.HotelID]})
	}

	return &model.SessionSnapshot{
		AgentState:        model.StateWaitForSelection,
		Constraints:       c,
		Candidates:        search.Candidates,
		Offers:            offers.Offers,
		RankedOffers:      rank.RankedOffers,
		RankReasons:       rank.Reasons,
		RecommendedOffers: cards,
		Fingerprint:       &fp,
	}
}

func TestTurnFullShoppingFlow(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {fullExtract},
		"DECIDE": {
			`{"type":"call_tool","tool_name":"search_candidates"}`,
			`{"type":"call_tool","tool_name":"get_offers"}`,
			`{"type":"call_tool","tool_name":"rank_offers"}`,
		},
	}}
	resp := &scriptedModel{}
	eng := newTestEngine(dec, resp, srv, testGuardrails())

	st := model.NewTurnState("s1", "2 adults, 1 room in Austin, 2026-03-10 to 2026-03-12, under $1200", nil, nil)
	eng.Turn(context.Background(), st)

	require.Equal(t, []string{
		"/tools/search_candidates",
		"/tools/get_offers",
		"/tools/rank_offers",
	}, srv.calls())

	require.Equal(t, model.StateWaitForSelection, st.AgentState)
	require.True(t, strings.HasPrefix(st.AssistantMessage,
		"Top 3 offers (tool-provided) for Austin • 2026-03-10 to 2026-03-12 • 2 adults, 1 room:"))
	require.Contains(t, st.AssistantMessage, offerID1)
	require.Contains(t, st.AssistantMessage, "hotel: The Driskill")
	require.Contains(t, st.AssistantMessage, "total_price: $432.10")
	require.True(t, strings.HasSuffix(st.AssistantMessage, "Select by replying with the offer_id."))

	require.Len(t, st.Events, 3)
	for _, evt := range st.Events {
		require.Equal(t, model.ToolStatusOK, evt.Status)
	}
	require.Equal(t, 3, st.ToolCallsThisTurn)
	require.Len(t, st.RecommendedOffers, 3)
	require.True(t, st.HasFingerprint)
	require.Equal(t, st.Constraints.Fingerprint(), st.Fingerprint)
	// The responder model never runs on the deterministic offer display.
	require.Empty(t, resp.calls)
}

func TestTurnForcesPipelineOnPrematureRespond(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {fullExtract},
		"DECIDE": {
			`{"type":"respond","kind":"explain"}`,
			`{"type":"respond","kind":"explain"}`,
			`{"type":"respond","kind":"explain"}`,
		},
	}}
	eng := newTestEngine(dec, &scriptedModel{}, srv, testGuardrails())

	st := model.NewTurnState("s1", "find me a Austin hotel", nil, nil)
	eng.Turn(context.Background(), st)

	require.Equal(t, []string{
		"/tools/search_candidates",
		"/tools/get_offers",
		"/tools/rank_offers",
	}, srv.calls())
	require.Equal(t, model.StateWaitForSelection, st.AgentState)
}

func TestTurnOverridesOutOfOrderToolProposal(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {fullExtract},
		"DECIDE": {
			`{"type":"call_tool","tool_name":"rank_offers"}`,
			`{"type":"call_tool","tool_name":"rank_offers"}`,
			`{"type":"call_tool","tool_name":"rank_offers"}`,
		},
	}}
	eng := newTestEngine(dec, &scriptedModel{}, srv, testGuardrails())

	st := model.NewTurnState("s1", "rank the offers already", nil, nil)
	eng.Turn(context.Background(), st)

	require.Equal(t, []string{
		"/tools/search_candidates",
		"/tools/get_offers",
		"/tools/rank_offers",
	}, srv.calls())
}

func TestTurnBlocksOnDateClarification(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {`{"constraints_update":{"city":"Austin"}}`},
		"DATE_RESOLVE": {
			`{"needs_clarification":true,"question":"What dates should I use for Austin? (YYYY-MM-DD to YYYY-MM-DD)"}`,
		},
	}}
	eng := newTestEngine(dec, &scriptedModel{}, srv, testGuardrails())

	st := model.NewTurnState("s1", "Austin", nil, nil)
	eng.Turn(context.Background(), st)

	require.Empty(t, srv.calls())
	require.Zero(t, st.ToolCallsThisTurn)
	require.Equal(t, model.StateCollectConstraints, st.AgentState)
	require.Equal(t, "What dates should I use for Austin? (YYYY-MM-DD to YYYY-MM-DD)", st.AssistantMessage)
}

func TestTurnRefinementInvalidatesCacheAndReruns(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {`{"constraints_update":{"min_star":4}}`},
		"DECIDE": {
			`{"type":"call_tool","tool_name":"search_candidates"}`,
			`{"type":"call_tool","tool_name":"get_offers"}`,
			`{"type":"call_tool","tool_name":"rank_offers"}`,
		},
	}}
	eng := newTestEngine(dec, &scriptedModel{}, srv, testGuardrails())

	st := model.NewTurnState("s1", "Only show 4 star and up", seededSnapshot(t), nil)
	eng.Turn(context.Background(), st)

	// The star change invalidated every cached tool result, so the whole
	// pipeline ran again.
	require.Equal(t, []string{
		"/tools/search_candidates",
		"/tools/get_offers",
		"/tools/rank_offers",
	}, srv.calls())

	require.Equal(t, model.StateWaitForSelection, st.AgentState)
	require.Equal(t, st.Constraints.Fingerprint(), st.Fingerprint)
	require.Equal(t, 4.0, *st.Constraints.MinStar)

	// Budget Inn (3.0 star) is filtered out of the display.
	require.Contains(t, st.AssistantMessage, " (min 4-star)")
	require.Contains(t, st.AssistantMessage, offerID1)
	require.Contains(t, st.AssistantMessage, offerID3)
	require.NotContains(t, st.AssistantMessage, offerID2)
	require.Len(t, st.RecommendedOffers, 2)
}

func TestTurnMatchingFingerprintSkipsTools(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		// No constraint changes; the decision model asks for a fresh search anyway.
		"DECIDE": {`{"type":"call_tool","tool_name":"search_candidates"}`},
	}}
	eng := newTestEngine(dec, &scriptedModel{}, srv, testGuardrails())

	snap := seededSnapshot(t)
	snap.Constraints.RefundablePreferred = ptr(false)
	fp := snap.Constraints.Fingerprint()
	snap.Fingerprint = &fp

	st := model.NewTurnState("s1", "show those again", snap, nil)
	eng.Turn(context.Background(), st)

	// Ranked offers are still cached and valid, so no tool runs.
	require.Empty(t, srv.calls())
	require.Equal(t, model.StateWaitForSelection, st.AgentState)
	require.Contains(t, st.AssistantMessage, offerID1)
}

func TestTurnToolBudgetExhausted(t *testing.T) {
	srv := newToolServer(t)
	g := testGuardrails()
	g.MaxToolCallsPerTurn = 1

	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {fullExtract},
		"DECIDE": {
			`{"type":"call_tool","tool_name":"search_candidates"}`,
			`{"type":"call_tool","tool_name":"get_offers"}`,
		},
	}}
	resp := &scriptedModel{responses: map[string][]string{
		"RESPOND": {"I hit the tool limit for this turn. Ask me to continue and I'll pick up from here."},
	}}
	eng := newTestEngine(dec, resp, srv, g)

	st := model.NewTurnState("s1", "find me an Austin hotel", nil, nil)
	eng.Turn(context.Background(), st)

	require.Equal(t, []string{"/tools/search_candidates"}, srv.calls())
	require.Equal(t, 1, st.ToolCallsThisTurn)
	require.Equal(t, model.StateRespond, st.AgentState)
	require.Equal(t, "I hit the tool limit for this turn. Ask me to continue and I'll pick up from here.", st.AssistantMessage)
}

func TestTurnSelectionConfirmsWithoutRepricing(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {`{"offer_id":"` + offerID3 + `"}`},
	}}
	eng := newTestEngine(dec, &scriptedModel{}, srv, testGuardrails())

	st := model.NewTurnState("s1", offerID3, seededSnapshot(t), nil)
	eng.Turn(context.Background(), st)

	require.Empty(t, srv.calls())
	require.Zero(t, dec.modeCalls("DECIDE"))
	require.Equal(t, model.StateConfirm, st.AgentState)
	require.True(t, strings.HasPrefix(st.AssistantMessage,
		"Selected offer (tool-provided) for Austin • 2026-03-10 to 2026-03-12:"))
	require.Contains(t, st.AssistantMessage, offerID3)
	require.Contains(t, st.AssistantMessage, "hotel: Hotel Van Zandt")
	require.Equal(t, offerID3, st.LastSelectedOfferID)
	require.Empty(t, st.SelectedOfferID)
}

func TestTurnUnknownSelectionAsksAgain(t *testing.T) {
	srv := newToolServer(t)
	unknown := "99999999-9999-4999-8999-999999999999"
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {`{"offer_id":"` + unknown + `"}`},
	}}
	eng := newTestEngine(dec, &scriptedModel{}, srv, testGuardrails())

	st := model.NewTurnState("s1", unknown, seededSnapshot(t), nil)
	eng.Turn(context.Background(), st)

	require.Empty(t, srv.calls())
	require.Equal(t, model.StateWaitForSelection, st.AgentState)
	require.Equal(t, "I couldn't find that offer_id in this session. "+
		"Please reply with one of the offer_id values I listed, or ask me to search again.", st.AssistantMessage)
}

func TestTurnSelectionWithoutContextAsksToReshop(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT": {`{"offer_id":"` + offerID1 + `"}`},
	}}
	resp := &scriptedModel{responses: map[string][]string{
		"RESPOND": {"I don't have that offer loaded. Want me to search again with the same city and dates?"},
	}}
	eng := newTestEngine(dec, resp, srv, testGuardrails())

	st := model.NewTurnState("s1", offerID1, nil, nil)
	eng.Turn(context.Background(), st)

	require.Empty(t, srv.calls())
	require.Equal(t, model.StateCollectConstraints, st.AgentState)
	require.Equal(t, "I don't have that offer loaded. Want me to search again with the same city and dates?", st.AssistantMessage)
}

func TestTurnRegeneratesOnGroundingViolation(t *testing.T) {
	srv := newToolServer(t)

	snap := seededSnapshot(t)
	// Offer context exists, but the trip is no longer complete (rooms were
	// cleared) and nothing is ranked, so the responder model generates text.
	snap.Constraints.Rooms = 0
	snap.RankedOffers = nil
	fp := snap.Constraints.Fingerprint()
	snap.Fingerprint = &fp

	dec := &scriptedModel{responses: map[string][]string{
		"DECIDE": {`{"type":"respond","kind":"generic"}`},
	}}
	resp := &scriptedModel{responses: map[string][]string{
		"RESPOND": {
			"The best deal is only $999.99 right now.",
			"The King Room at The Driskill totals $432.10.",
		},
	}}
	eng := newTestEngine(dec, resp, srv, testGuardrails())

	st := model.NewTurnState("s1", "which one is best?", snap, nil)
	eng.Turn(context.Background(), st)

	require.Equal(t, 2, resp.modeCalls("RESPOND"))
	require.Equal(t, "The King Room at The Driskill totals $432.10.", st.AssistantMessage)
	require.Equal(t, model.StateRespond, st.AgentState)
}

func TestTurnDecisionFailureFallsBackToResponder(t *testing.T) {
	srv := newToolServer(t)
	dec := &scriptedModel{responses: map[string][]string{
		"EXTRACT":           {`{"constraints_update":{"city":"Austin"}}`},
		"DATE_RESOLVE":      {`{"check_in":"2026-03-10","check_out":"2026-03-12"}`},
		"OCCUPANCY_RESOLVE": {`{"needs_clarification":false}`},
		"DECIDE":            {"I think we should search", "still not json"},
	}}
	resp := &scriptedModel{responses: map[string][]string{
		"RESPOND": {"How many adults and rooms should I plan for?"},
	}}
	eng := newTestEngine(dec, resp, srv, testGuardrails())

	st := model.NewTurnState("s1", "Austin 2026-03-10 to 2026-03-12", nil, nil)
	eng.Turn(context.Background(), st)

	require.Empty(t, srv.calls())
	require.Equal(t, 2, dec.modeCalls("DECIDE"))
	require.Equal(t, "How many adults and rooms should I plan for?", st.AssistantMessage)
	require.Equal(t, model.StateRespond, st.AgentState)
}
