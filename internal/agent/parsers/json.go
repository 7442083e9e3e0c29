package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Model output larger than this is rejected outright rather than scanned.
const maxContentLength = 100000

var (
	ErrNoJSONObject     = errors.New("no JSON object found in model output")
	ErrUnterminatedJSON = errors.New("unterminated JSON object in model output")
)

// FirstJSONObject extracts the first balanced {...} block from model output.
// Models wrap JSON in markdown fences or prose often enough that decoding the
// raw text directly is hopeless. The scanner tracks string and escape state,
// so braces inside string values do not unbalance the count.
func FirstJSONObject(text string) (string, error) {
	s := strings.TrimSpace(text)
	if len(s) > maxContentLength {
		return "", fmt.Errorf("model output too large: %d bytes", len(s))
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrUnterminatedJSON
}

// DecodeStrict unmarshals raw JSON into v, rejecting unknown fields. Every
// model contract in this service forbids extra keys; a lax decode here would
// silently accept hallucinated fields.
func DecodeStrict(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// A second value after the object means the input was not a single JSON document.
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data after JSON object")
	}
	return nil
}
