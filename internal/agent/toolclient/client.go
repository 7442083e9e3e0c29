package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/observers"
)

// Preview bounds applied to payload and result snapshots kept on tool events.
const (
	previewMaxString = 4000
	previewMaxList   = 50
	previewMaxDepth  = 6
	previewTopN      = 3
)

// Error marks a tool call that failed after every retry. The engine treats it
// as unrecoverable for that tool within the current turn.
type Error struct {
	Tool string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client POSTs JSON to the query tool service with a fixed per-attempt
// timeout and bounded retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
}

// New creates a tool client for the given base URL.
func New(baseURL string, timeoutMS, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    time.Duration(timeoutMS) * time.Millisecond,
		maxRetries: maxRetries,
	}
}

// Call executes one tool request. The returned event is always populated so
// the caller can append it to the turn timeline, success or not. On success
// the raw response body is returned for typed decoding by the caller.
func (c *Client) Call(ctx context.Context, toolName, path string, payload any) (json.RawMessage, model.ToolEvent, error) {
	evt := model.ToolEvent{
		ToolName: toolName,
		Path:     path,
		Status:   model.ToolStatusError,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, evt, &Error{Tool: toolName, Err: err}
	}
	evt.Payload = truncateJSON(body)

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		raw, err := c.post(ctx, path, body)
		if err != nil {
			lastErr = err
			logx.Warn().
				Str("tool", toolName).
				Int("attempt", attempt).
				Err(err).
				Msg("tool call attempt failed")
			continue
		}

		evt.Status = model.ToolStatusOK
		evt.LatencyMS = time.Since(start).Milliseconds()
		evt.Retries = attempt
		evt.ResultCounts = resultCounts(toolName, raw)
		evt.ResultPreview = resultPreview(toolName, raw)
		observers.ToolLatencyMS.WithLabelValues(toolName).Observe(float64(evt.LatencyMS))
		return raw, evt, nil
	}

	evt.LatencyMS = time.Since(start).Milliseconds()
	evt.Retries = c.maxRetries
	observers.ToolErrorTotal.WithLabelValues(toolName).Inc()
	return nil, evt, &Error{Tool: toolName, Err: lastErr}
}

func (c *Client) post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncateString(string(data), 200))
	}
	return data, nil
}

// resultCounts extracts the per-tool list sizes used in logs and response
// context.
func resultCounts(toolName string, raw json.RawMessage) map[string]int {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	count := func(key string) int {
		var items []json.RawMessage
		if err := json.Unmarshal(doc[key], &items); err != nil {
			return 0
		}
		return len(items)
	}
	switch toolName {
	case model.ToolSearchCandidates:
		return map[string]int{"candidates": count("candidates")}
	case model.ToolGetOffers:
		return map[string]int{"offers": count("offers")}
	case model.ToolRankOffers:
		return map[string]int{"ranked_offers": count("ranked_offers")}
	}
	return nil
}

// resultPreview keeps the first few items of the tool's primary list so the
// timeline stays readable without storing whole responses.
func resultPreview(toolName string, raw json.RawMessage) json.RawMessage {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	var key string
	switch toolName {
	case model.ToolSearchCandidates:
		key = "candidates"
	case model.ToolGetOffers:
		key = "offers"
	case model.ToolRankOffers:
		key = "ranked_offers"
	default:
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(doc[key], &items); err != nil {
		return nil
	}
	if len(items) > previewTopN {
		items = items[:previewTopN]
	}
	out, err := json.Marshal(map[string]any{key: items})
	if err != nil {
		return nil
	}
	return truncateJSON(out)
}

// truncateJSON re-marshals a JSON document with long strings, long lists and
// deep nesting cut down to the preview bounds.
func truncateJSON(raw []byte) json.RawMessage {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	out, err := json.Marshal(truncateValue(v, 0))
	if err != nil {
		return nil
	}
	return out
}

func truncateValue(v any, depth int) any {
	if depth >= previewMaxDepth {
		return "...(truncated depth)"
	}
	switch t := v.(type) {
	case string:
		return truncateString(t, previewMaxString)
	case []any:
		if len(t) > previewMaxList {
			t = t[:previewMaxList]
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = truncateValue(item, depth+1)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = truncateValue(item, depth+1)
		}
		return out
	default:
		return v
	}
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
